package tesouro

import (
	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/model"
)

// GenerateFiscalKey issues a 44-digit fiscal access key for a tenant
// document, pulling the issuer constants (state, document model,
// emission type) from configuration. The random code is drawn fresh on
// every call.
func (l *Tesouro) GenerateFiscalKey(taxID string, series int, number int64) (string, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return "", err
	}
	return model.GenerateAccessKey(model.AccessKeyParams{
		UF:           cnf.Fiscal.UF,
		TaxID:        taxID,
		DocModel:     cnf.Fiscal.DocModel,
		Series:       series,
		Number:       number,
		EmissionType: cnf.Fiscal.EmissionType,
		RandomCode:   -1,
	})
}

// ValidateFiscalKey recomputes and checks a key's check digit.
func (l *Tesouro) ValidateFiscalKey(key string) error {
	return model.ValidateAccessKey(key)
}
