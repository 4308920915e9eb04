package domain

// Account is the known balance of an address on one network.
type Account struct {
	Network NetworkID `json:"network"`
	Address string    `json:"address"`
	Balance string    `json:"balance"`
}
