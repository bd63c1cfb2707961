package stack

// Labels attached to every engine resource of a stack.
const (
	LabelProject = "dev.postboard.stack/project"
	LabelService = "dev.postboard.stack/service"
)

// ContainerName is the engine name of a service container.
func (s *Stack) ContainerName(service string) string {
	return s.Name + "-" + service
}

// VolumeName is the engine name of a declared volume.
func (s *Stack) VolumeName(volume string) string {
	if v, ok := s.Volumes[volume]; ok && v != nil && v.Name != "" {
		return v.Name
	}
	return s.Name + "_" + volume
}

// NetworkName is the stack's private network.
func (s *Stack) NetworkName() string {
	return s.Name + "_default"
}

// ImageName is the tag given to images built for a service.
func (s *Stack) ImageName(service string) string {
	return s.Name + "-" + service + ":dev"
}

// ServiceImage returns the image a service runs. A service that both builds and names
// an image tags the build with that name.
func (s *Stack) ServiceImage(service string) string {
	if svc, ok := s.Services[service]; ok && svc.Image != "" {
		return svc.Image
	}
	return s.ImageName(service)
}

// ProjectLabels select every resource of the stack.
func (s *Stack) ProjectLabels() map[string]string {
	return map[string]string{LabelProject: s.Name}
}

// ServiceLabels select the resources of one service.
func (s *Stack) ServiceLabels(service string) map[string]string {
	return map[string]string{LabelProject: s.Name, LabelService: service}
}
