package outbound

// MachineIDService identifies the host the process runs on
type MachineIDService interface {
	GetMachineID() (string, error)
}
