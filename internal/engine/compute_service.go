package engine

import (
	"fmt"

	"github.com/wrenchsim/daemon/internal/model"
)

// StartComputeService validates spec against the loaded platform and
// returns a ready-to-run ComputeService. It does not touch simulation state
// beyond reading the platform, so it may be called from any goroutine; only
// the result of registering it with the controller's service registry is
// controller-goroutine-only.
func (s *Simulation) StartComputeService(name, headHost string) (model.ComputeService, error) {
	host, ok := s.platform.Host(headHost)
	if !ok {
		return model.ComputeService{}, fmt.Errorf("head host %q does not exist on this platform", headHost)
	}

	return model.ComputeService{
		Name:     name,
		Type:     model.ComputeBaremetal,
		HeadHost: headHost,
		Cores:    host.Cores,
		FlopRate: host.FlopRate,
	}, nil
}
