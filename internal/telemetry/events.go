package telemetry

// Event types published by netctl.
const (
	EventReady               = "ready"
	EventHeartbeat           = "heartbeat"
	EventInterfaceRegistered = "interfaceRegistered"
	EventDHCPRenew           = "dhcpRenew"
	EventDHCPStart           = "dhcpStart"
	EventDHCPBound           = "dhcpBound"
	EventDHCPTimeout         = "dhcpTimeout"
	EventStaticApplied       = "staticApplied"
	EventSettingsChanged     = "settingsChanged"
	EventFault               = "fault"
)

// globalStream keys events that belong to no interface.
const globalStream = "global"
