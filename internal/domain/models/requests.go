package models

// Requests for the status HTTP endpoints.

type SymbolRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,min=1,max=12"`
}

type SymbolsRequest struct {
	Status string `query:"status" json:"status" default:"ALL" validate:"oneof=ALL FLAT LONG"`
}
