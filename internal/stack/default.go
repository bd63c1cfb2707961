package stack

import "path/filepath"

// APICommand is the launch command of the backend service.
var APICommand = Command{"postboard-api", "--host", "0.0.0.0", "--port", "8000", "--reload", "--log-config", "logging.yaml"}

// Default returns the built-in descriptor: a MongoDB service with a persistent named
// volume and the backend built from dir with the source tree bind mounted.
func Default(dir string) *Stack {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	st := &Stack{
		Dir: abs,
		Services: map[string]*Service{
			"db": {
				Image: "mongo:7",
				Ports: Ports{{ContainerPort: 27017, HostPort: 27017, Protocol: "tcp"}},
				Volumes: []Mount{
					{Source: "mongo_data", Target: "/data/db", Kind: MountVolume},
				},
			},
			"backend": {
				Build:   &Build{Context: "."},
				Command: APICommand,
				Environment: map[string]string{
					"DATABASE_URL":  "mongodb://db:27017",
					"DATABASE_NAME": "postboard",
				},
				Ports: Ports{{ContainerPort: 8000, HostPort: 8000, Protocol: "tcp"}},
				Volumes: []Mount{
					{Source: ".", Target: "/app", Kind: MountBind},
				},
				DependsOn:   []string{"db"},
				Healthcheck: &Healthcheck{Path: "/healthz"},
				WorkingDir:  "/app",
			},
		},
		Volumes: map[string]*Volume{
			"mongo_data": {},
		},
	}
	st.normalize()
	return st
}
