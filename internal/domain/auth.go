package domain

// AuthContext carries the caller identity resolved by the transport layer.
// CustomerID is zero for guests.
type AuthContext struct {
	CustomerID int64
	SessionID  string
	ClientIP   string
}

// LoggedIn reports whether a customer is authenticated.
func (a AuthContext) LoggedIn() bool { return a.CustomerID > 0 }
