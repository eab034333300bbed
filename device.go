package wolfcomm

// Device is one heating system registered to the portal account. The portal
// addresses it by the pair of system id and gateway id.
type Device struct {
	ID        int64  `json:"Id"`
	GatewayID int64  `json:"GatewayId"`
	Name      string `json:"Name"`
}

// systemState is the per-system entry of a GetSystemStateList response. Only
// the gateway's online flag is of interest.
type systemState struct {
	SystemID     int64 `json:"SystemId"`
	GatewayState struct {
		IsOnline bool `json:"IsOnline"`
	} `json:"GatewayState"`
}
