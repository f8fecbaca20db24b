package model

// GenerateFiscalKey is the JSON body of POST /fiscal-keys.
type GenerateFiscalKey struct {
	TaxID  string `json:"taxId"`
	Series int    `json:"series"`
	Number int64  `json:"number"`
}

// FiscalKeyResponse carries a generated or validated access key.
type FiscalKeyResponse struct {
	AccessKey string `json:"accessKey"`
	Valid     bool   `json:"valid"`
}
