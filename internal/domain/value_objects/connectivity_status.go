package valueobjects

type ConnectivityStatus string

const (
	ConnectivityStatusReachable   ConnectivityStatus = "reachable"
	ConnectivityStatusUnreachable ConnectivityStatus = "unreachable"
)

func NewConnectivityStatus(reachable bool) ConnectivityStatus {
	if reachable {
		return ConnectivityStatusReachable
	}

	return ConnectivityStatusUnreachable
}

func (s ConnectivityStatus) Reachable() bool {
	return s == ConnectivityStatusReachable
}

func (s ConnectivityStatus) String() string {
	return string(s)
}
