package models

type Country struct {
	ID        int64
	ISO       string
	Name      string
	ISO3      string
	NumCode   int
	PhoneCode int
}
