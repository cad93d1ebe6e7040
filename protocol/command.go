package protocol

// Commands the core sends on its own behalf. Everything else is built by the
// caller and passed through as an opaque payload.
const (
	Ping      = "Ping"
	GetStatus = "GetStatus"
)

// Kind classifies the data of an inbound frame.
type Kind string

const (
	KindOk     Kind = "Ok"
	KindStatus Kind = "Status"
	KindPatch  Kind = "Patch"
	KindError  Kind = "Error"

	// KindResult is any reply we don't recognise. It's passed through as is.
	KindResult Kind = "Result"

	// KindInvalid is a frame whose id could be read but whose data could not.
	KindInvalid Kind = "Invalid"
)

// DaemonCommand wraps a command addressed to the daemon itself rather than a
// specific device.
type DaemonCommand struct {
	Daemon interface{} `json:"Daemon"`
}

// DeviceCommand wraps a command for the device with the given serial number.
type DeviceCommand struct {
	Command [2]interface{} `json:"Command"`
}

func NewDaemonCommand(command interface{}) DaemonCommand {
	return DaemonCommand{Daemon: command}
}

func NewDeviceCommand(serial string, command interface{}) DeviceCommand {
	return DeviceCommand{Command: [2]interface{}{serial, command}}
}
