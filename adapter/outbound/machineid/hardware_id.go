package machineid

import (
	"fmt"

	"github.com/ajkula/logwatcher/domain/port/outbound"
	"github.com/denisbrodbeck/machineid"
)

const appID = "logwatcher"

type hardwareMachineID struct{}

func NewHardwareMachineID() outbound.MachineIDService {
	return &hardwareMachineID{}
}

// GetMachineID returns a node id derived from the host's machine id, keyed
// with the application id so the raw machine id never leaves the host
func (h *hardwareMachineID) GetMachineID() (string, error) {
	protected, err := machineid.ProtectedID(appID)
	if err != nil {
		return "", fmt.Errorf("failed to read machine id: %w", err)
	}

	return appID + "-" + protected[:12], nil
}
