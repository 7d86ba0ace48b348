package tracking

import (
	"sync"

	"github.com/Faultbox/asgard-vr/pkg/math"
)

// StaticClient serves fixed poses and velocities per space. It is used
// by the demo harness and by tests; SetPose may be called from a
// different goroutine than the render loop.
type StaticClient struct {
	mu         sync.Mutex
	poses      map[string]math.Pose
	velocities map[string]VelocityReport
	updates    int
}

// NewStaticClient returns a client with an identity head pose.
func NewStaticClient() *StaticClient {
	return &StaticClient{
		poses: map[string]math.Pose{
			HeadSpace: math.PoseIdentity(),
		},
		velocities: map[string]VelocityReport{},
	}
}

// SetPose sets or replaces the pose for a space.
func (s *StaticClient) SetPose(space string, p math.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poses[space] = p
}

// ClearPose removes a space, making subsequent reads fail.
func (s *StaticClient) ClearPose(space string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.poses, space)
}

// SetVelocity sets the velocity report for a space.
func (s *StaticClient) SetVelocity(space string, v VelocityReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocities[space] = v
}

// Update counts frames; there are no callbacks to pump.
func (s *StaticClient) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	return nil
}

// Updates reports how many times Update has been called.
func (s *StaticClient) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// Pose returns the stored pose for a space.
func (s *StaticClient) Pose(space string) (math.Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.poses[space]
	return p, ok
}

// Velocity returns the stored velocity report for a space.
func (s *StaticClient) Velocity(space string) (VelocityReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.velocities[space]
	return v, ok
}
