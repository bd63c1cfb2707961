// Package kubernetes runs a stack inside a Kubernetes namespace: a PersistentVolumeClaim
// per named volume and a Deployment plus ClusterIP Service per service.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/utils/ptr"

	"github.com/Camiloez/postboard/internal/runtime"
	"github.com/Camiloez/postboard/internal/stack"
)

const restartedAtAnnotation = "dev.postboard.stack/restarted-at"

var _ runtime.Runtime = (*Runtime)(nil)

// Options tune the Kubernetes runtime.
type Options struct {
	// DefaultVolumeSize applies to volumes that do not declare a size.
	DefaultVolumeSize string
	// ReadyTimeout bounds the wait for deployments to become available; zero skips it.
	ReadyTimeout time.Duration
}

// Runtime implements runtime.Runtime against a namespace.
type Runtime struct {
	client    kubernetes.Interface
	namespace string
	logger    *slog.Logger
	opts      Options
}

// New creates a runtime from in-cluster configuration, falling back to kubeconfig
// (the explicit path, then KUBECONFIG, then ~/.kube/config).
func New(namespace, kubeconfig string, log *slog.Logger, opts Options) (*Runtime, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		path := strings.TrimSpace(kubeconfig)
		if path == "" {
			path = strings.TrimSpace(os.Getenv("KUBECONFIG"))
		}
		if path == "" {
			if home, herr := os.UserHomeDir(); herr == nil {
				path = filepath.Join(home, ".kube", "config")
			}
		}
		if path == "" {
			return nil, fmt.Errorf("create in-cluster config: %w", err)
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, fmt.Errorf("create kubeconfig client: %w", err)
		}
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}
	return NewWithClient(clientset, namespace, log, opts), nil
}

// NewWithClient wraps an existing clientset.
func NewWithClient(client kubernetes.Interface, namespace string, log *slog.Logger, opts Options) *Runtime {
	if namespace == "" {
		namespace = "default"
	}
	if opts.DefaultVolumeSize == "" {
		opts.DefaultVolumeSize = "1Gi"
	}
	return &Runtime{client: client, namespace: namespace, logger: log, opts: opts}
}

// Up applies volumes, deployments and services in dependency order.
func (r *Runtime) Up(ctx context.Context, st *stack.Stack, opts runtime.UpOptions) error {
	order, err := st.Order()
	if err != nil {
		return err
	}
	if err := r.ensureNamespace(ctx); err != nil {
		return err
	}
	for _, name := range st.VolumeNames() {
		if err := r.ensureClaim(ctx, st, name); err != nil {
			return err
		}
	}
	for _, name := range order {
		svc := st.Services[name]
		if svc.Build != nil && opts.Build {
			r.logger.Warn("kubernetes runtime does not build images; make the image available to the cluster", "service", name, "image", st.ServiceImage(name))
		}
		deployment, err := r.deploymentFor(st, name, opts.Pull)
		if err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		if err := r.applyDeployment(ctx, deployment); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		if len(svc.Ports) > 0 {
			if err := r.applyService(ctx, serviceFor(st, name, r.namespace)); err != nil {
				return fmt.Errorf("service %s: %w", name, err)
			}
		}
		r.logger.Info("service applied", "service", name, "deployment", deployment.Name, "namespace", r.namespace)
		if r.opts.ReadyTimeout > 0 {
			if err := r.waitAvailable(ctx, deployment.Name); err != nil {
				return fmt.Errorf("service %s: %w", name, err)
			}
		}
	}
	return nil
}

// Down deletes deployments and services; claims only with opts.RemoveVolumes.
func (r *Runtime) Down(ctx context.Context, st *stack.Stack, opts runtime.DownOptions) error {
	var errs error
	for _, name := range st.ServiceNames() {
		err := r.client.AppsV1().Deployments(r.namespace).Delete(ctx, resourceName(st.ContainerName(name)), metav1.DeleteOptions{})
		if err != nil && !errors.IsNotFound(err) {
			errs = multierr.Append(errs, fmt.Errorf("delete deployment %s: %w", name, err))
		}
		err = r.client.CoreV1().Services(r.namespace).Delete(ctx, resourceName(name), metav1.DeleteOptions{})
		if err != nil && !errors.IsNotFound(err) {
			errs = multierr.Append(errs, fmt.Errorf("delete service %s: %w", name, err))
		}
	}
	if opts.RemoveVolumes {
		for _, name := range st.VolumeNames() {
			claim := resourceName(st.VolumeName(name))
			err := r.client.CoreV1().PersistentVolumeClaims(r.namespace).Delete(ctx, claim, metav1.DeleteOptions{})
			if err != nil && !errors.IsNotFound(err) {
				errs = multierr.Append(errs, fmt.Errorf("delete claim %s: %w", claim, err))
				continue
			}
			r.logger.Info("claim removed", "claim", claim)
		}
	}
	return errs
}

// Status reports deployment availability per service.
func (r *Runtime) Status(ctx context.Context, st *stack.Stack) ([]runtime.ServiceStatus, error) {
	selector := labels.SelectorFromSet(st.ProjectLabels()).String()
	deployments, err := r.client.AppsV1().Deployments(r.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	byService := make(map[string]appsv1.Deployment, len(deployments.Items))
	for _, d := range deployments.Items {
		byService[d.Labels[stack.LabelService]] = d
	}
	names := st.ServiceNames()
	statuses := make([]runtime.ServiceStatus, 0, len(names))
	for _, name := range names {
		status := runtime.ServiceStatus{
			Service: name,
			Name:    resourceName(st.ContainerName(name)),
			Image:   st.ServiceImage(name),
			State:   "missing",
		}
		if d, ok := byService[name]; ok {
			desired := ptr.Deref(d.Spec.Replicas, 1)
			status.State = "progressing"
			if d.Status.AvailableReplicas >= desired {
				status.State = "running"
			}
			status.Detail = fmt.Sprintf("%d/%d ready", d.Status.ReadyReplicas, desired)
			if len(d.Spec.Template.Spec.Containers) > 0 {
				status.Image = d.Spec.Template.Spec.Containers[0].Image
			}
		}
		for _, p := range st.Services[name].Ports {
			status.Ports = append(status.Ports, fmt.Sprintf("%s:%d->%d/%s", resourceName(name), servicePort(p), p.ContainerPort, strings.ToLower(string(protocol(p)))))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Restart rolls the service's pods by stamping the pod template.
func (r *Runtime) Restart(ctx context.Context, st *stack.Stack, service string) error {
	if _, err := st.Service(service); err != nil {
		return err
	}
	deployments := r.client.AppsV1().Deployments(r.namespace)
	name := resourceName(st.ContainerName(service))
	existing, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get deployment %s: %w", name, err)
	}
	if existing.Spec.Template.Annotations == nil {
		existing.Spec.Template.Annotations = map[string]string{}
	}
	existing.Spec.Template.Annotations[restartedAtAnnotation] = time.Now().UTC().Format(time.RFC3339)
	if _, err := deployments.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update deployment %s: %w", name, err)
	}
	r.logger.Info("service restarted", "service", service, "deployment", name)
	return nil
}

func (r *Runtime) ensureNamespace(ctx context.Context) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: r.namespace}}
	if _, err := r.client.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil && !errors.IsAlreadyExists(err) {
		return fmt.Errorf("create namespace %s: %w", r.namespace, err)
	}
	return nil
}

// ensureClaim creates the claim once; an existing claim keeps its data and size.
func (r *Runtime) ensureClaim(ctx context.Context, st *stack.Stack, volume string) error {
	size := st.Volumes[volume].Size
	if size == "" {
		size = r.opts.DefaultVolumeSize
	}
	quantity, err := resource.ParseQuantity(size)
	if err != nil {
		return fmt.Errorf("volume %s: invalid size %q: %w", volume, size, err)
	}
	name := resourceName(st.VolumeName(volume))
	claim := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: r.namespace,
			Labels:    st.ProjectLabels(),
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: quantity},
			},
		},
	}
	_, err = r.client.CoreV1().PersistentVolumeClaims(r.namespace).Create(ctx, claim, metav1.CreateOptions{})
	switch {
	case err == nil:
		r.logger.Info("claim created", "claim", name, "size", size)
	case errors.IsAlreadyExists(err):
		r.logger.Debug("claim reused", "claim", name)
	default:
		return fmt.Errorf("create claim %s: %w", name, err)
	}
	return nil
}

func (r *Runtime) deploymentFor(st *stack.Stack, service string, pull bool) (*appsv1.Deployment, error) {
	svc := st.Services[service]
	podLabels := st.ServiceLabels(service)

	container := corev1.Container{
		Name:            resourceName(service),
		Image:           st.ServiceImage(service),
		Args:            svc.Command,
		WorkingDir:      svc.WorkingDir,
		ImagePullPolicy: corev1.PullIfNotPresent,
	}
	if pull {
		container.ImagePullPolicy = corev1.PullAlways
	}
	for _, kv := range svc.EnvList() {
		key, value, _ := strings.Cut(kv, "=")
		container.Env = append(container.Env, corev1.EnvVar{Name: key, Value: value})
	}
	for _, p := range svc.Ports {
		container.Ports = append(container.Ports, corev1.ContainerPort{
			ContainerPort: int32(p.ContainerPort),
			Protocol:      protocol(p),
		})
	}
	if svc.Healthcheck != nil {
		container.ReadinessProbe = &corev1.Probe{
			ProbeHandler: corev1.ProbeHandler{
				HTTPGet: &corev1.HTTPGetAction{
					Path: svc.Healthcheck.Path,
					Port: intstr.FromInt32(int32(svc.HealthPort())),
				},
			},
			InitialDelaySeconds: 2,
			PeriodSeconds:       5,
			FailureThreshold:    6,
		}
	}

	var volumes []corev1.Volume
	strategy := appsv1.DeploymentStrategy{Type: appsv1.RollingUpdateDeploymentStrategyType}
	for i, m := range svc.Volumes {
		volName := fmt.Sprintf("vol-%d", i)
		container.VolumeMounts = append(container.VolumeMounts, corev1.VolumeMount{
			Name:      volName,
			MountPath: m.Target,
			ReadOnly:  m.ReadOnly,
		})
		if m.Kind == stack.MountBind {
			volumes = append(volumes, corev1.Volume{
				Name: volName,
				VolumeSource: corev1.VolumeSource{
					HostPath: &corev1.HostPathVolumeSource{
						Path: m.Source,
						Type: ptr.To(corev1.HostPathDirectoryOrCreate),
					},
				},
			})
			continue
		}
		if _, ok := st.Volumes[m.Source]; !ok {
			return nil, fmt.Errorf("volume %q is not declared", m.Source)
		}
		// ReadWriteOnce claims cannot be attached by old and new pods at once.
		strategy = appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType}
		volumes = append(volumes, corev1.Volume{
			Name: volName,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: resourceName(st.VolumeName(m.Source)),
					ReadOnly:  m.ReadOnly,
				},
			},
		})
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      resourceName(st.ContainerName(service)),
			Namespace: r.namespace,
			Labels:    podLabels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas:             ptr.To[int32](1),
			RevisionHistoryLimit: ptr.To[int32](1),
			Strategy:             strategy,
			Selector:             &metav1.LabelSelector{MatchLabels: podLabels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{container},
					Volumes:    volumes,
				},
			},
		},
	}, nil
}

// serviceFor exposes a service under its own name so in-cluster DNS matches the
// network aliases the Docker runtime uses.
func serviceFor(st *stack.Stack, service, namespace string) *corev1.Service {
	svc := st.Services[service]
	ports := make([]corev1.ServicePort, 0, len(svc.Ports))
	for i, p := range svc.Ports {
		ports = append(ports, corev1.ServicePort{
			Name:       fmt.Sprintf("%s-%d", strings.ToLower(string(protocol(p))), i),
			Port:       int32(servicePort(p)),
			TargetPort: intstr.FromInt32(int32(p.ContainerPort)),
			Protocol:   protocol(p),
		})
	}
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      resourceName(service),
			Namespace: namespace,
			Labels:    st.ServiceLabels(service),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: st.ServiceLabels(service),
			Ports:    ports,
		},
	}
}

func (r *Runtime) applyDeployment(ctx context.Context, desired *appsv1.Deployment) error {
	deployments := r.client.AppsV1().Deployments(r.namespace)
	_, err := deployments.Create(ctx, desired, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !errors.IsAlreadyExists(err) {
		return fmt.Errorf("create deployment: %w", err)
	}
	existing, getErr := deployments.Get(ctx, desired.Name, metav1.GetOptions{})
	if getErr != nil {
		return fmt.Errorf("get deployment: %w", getErr)
	}
	desired.ResourceVersion = existing.ResourceVersion
	if _, err := deployments.Update(ctx, desired, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	return nil
}

func (r *Runtime) applyService(ctx context.Context, desired *corev1.Service) error {
	services := r.client.CoreV1().Services(r.namespace)
	_, err := services.Create(ctx, desired, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !errors.IsAlreadyExists(err) {
		return fmt.Errorf("create service: %w", err)
	}
	existing, getErr := services.Get(ctx, desired.Name, metav1.GetOptions{})
	if getErr != nil {
		return fmt.Errorf("get service: %w", getErr)
	}
	desired.ResourceVersion = existing.ResourceVersion
	desired.Spec.ClusterIP = existing.Spec.ClusterIP
	desired.Spec.ClusterIPs = existing.Spec.ClusterIPs
	if _, err := services.Update(ctx, desired, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

func (r *Runtime) waitAvailable(ctx context.Context, name string) error {
	return wait.PollUntilContextTimeout(ctx, 2*time.Second, r.opts.ReadyTimeout, true, func(ctx context.Context) (bool, error) {
		d, err := r.client.AppsV1().Deployments(r.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		return d.Status.AvailableReplicas >= ptr.Deref(d.Spec.Replicas, 1), nil
	})
}

func servicePort(p stack.PortMapping) int {
	if p.HostPort > 0 {
		return p.HostPort
	}
	return p.ContainerPort
}

func protocol(p stack.PortMapping) corev1.Protocol {
	switch strings.ToLower(p.Protocol) {
	case "udp":
		return corev1.ProtocolUDP
	case "sctp":
		return corev1.ProtocolSCTP
	}
	return corev1.ProtocolTCP
}

// resourceName maps engine names onto DNS-1123 labels.
func resourceName(name string) string {
	lowered := strings.ToLower(name)
	out := make([]rune, 0, len(lowered))
	for _, r := range lowered {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == '-' || r == '_' || r == '.':
			out = append(out, '-')
		}
	}
	value := strings.Trim(string(out), "-")
	if len(value) > 63 {
		value = strings.TrimRight(value[:63], "-")
	}
	if value == "" {
		value = "postboard"
	}
	return value
}
