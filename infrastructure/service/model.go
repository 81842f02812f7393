package service

import "github.com/shopspring/decimal"

type SimSwapRequest struct {
	Username     string   `json:"username"`
	PhoneNumbers []string `json:"phoneNumbers"`
}

type SimSwapPhoneNumber struct {
	Number      string `json:"number"`
	CountryCode string `json:"countryCode,omitempty"`
	NetworkCode string `json:"networkCode,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

type SimSwapResponseItem struct {
	PhoneNumber SimSwapPhoneNumber `json:"phoneNumber"`
	RequestID   string             `json:"requestId"`
	Status      string             `json:"status,omitempty"`
}

type SimSwapResponse struct {
	Responses     []SimSwapResponseItem `json:"responses"`
	Status        string                `json:"status,omitempty"`
	TransactionID string                `json:"transactionId,omitempty"`
	TotalCost     string                `json:"totalCost,omitempty"`
	ErrorMessage  string                `json:"errorMessage,omitempty"`
}

// SimSwapCheck pairs a queried number with the correlation id the provider will echo back.
type SimSwapCheck struct {
	PhoneNumber string
	RequestID   string
}

// AirtimeRecipient is the wire form; Amount carries the currency, e.g. "KES 100.00".
type AirtimeRecipient struct {
	PhoneNumber string `json:"phoneNumber"`
	Amount      string `json:"amount"`
}

type AirtimeResponseItem struct {
	PhoneNumber  string `json:"phoneNumber"`
	Amount       string `json:"amount"`
	Discount     string `json:"discount"`
	Status       string `json:"status"`
	RequestID    string `json:"requestId"`
	ErrorMessage string `json:"errorMessage"`
}

type AirtimeResponse struct {
	ErrorMessage  string                `json:"errorMessage"`
	NumSent       int                   `json:"numSent"`
	TotalAmount   string                `json:"totalAmount"`
	TotalDiscount string                `json:"totalDiscount"`
	Responses     []AirtimeResponseItem `json:"responses"`
}

type Disbursement struct {
	PhoneNumber    string
	Amount         decimal.Decimal
	CurrencyCode   string
	IdempotencyKey string
}

type DisbursementReceipt struct {
	Confirmation string
	Amount       string
	Discount     string
}
