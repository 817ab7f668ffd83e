package domain

type SimulatorState string

const (
	SimulatorIdle    SimulatorState = "idle"
	SimulatorRunning SimulatorState = "running"
)
