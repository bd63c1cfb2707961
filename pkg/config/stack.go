package config

import "time"

// StackConfig holds defaults for the devstack CLI.
type StackConfig struct {
	StackFile      string
	ProjectName    string
	Runtime        string
	DockerHost     string
	KubeNamespace  string
	Kubeconfig     string
	StopTimeout    time.Duration
	BuildTimeout   time.Duration
	SmokeTimeout   time.Duration
	ReadyTimeout   time.Duration
	AuthSecret     string
	TokenTTL       time.Duration
	DefaultPVCSize string
}

// LoadStackConfig constructs a StackConfig from environment variables.
func LoadStackConfig() StackConfig {
	return StackConfig{
		StackFile:      GetString("STACK_FILE", "stack.yaml"),
		ProjectName:    GetString("STACK_PROJECT", ""),
		Runtime:        GetString("STACK_RUNTIME", "docker"),
		DockerHost:     GetString("DOCKER_HOST", ""),
		KubeNamespace:  GetString("STACK_NAMESPACE", "default"),
		Kubeconfig:     GetString("KUBECONFIG", ""),
		StopTimeout:    GetDuration("STACK_STOP_TIMEOUT", 10*time.Second),
		BuildTimeout:   GetDuration("STACK_BUILD_TIMEOUT", 10*time.Minute),
		SmokeTimeout:   GetDuration("STACK_SMOKE_TIMEOUT", time.Minute),
		ReadyTimeout:   GetDuration("STACK_READY_TIMEOUT", 2*time.Minute),
		AuthSecret:     GetString("API_AUTH_SECRET", ""),
		TokenTTL:       GetDuration("API_TOKEN_TTL", 24*time.Hour),
		DefaultPVCSize: GetString("STACK_PVC_SIZE", "1Gi"),
	}
}
