package invoices_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/mef-invoices/internal/application/invoices"
	"github.com/tu-usuario/mef-invoices/internal/domain"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
)

func TestGetInvoice_Existente(t *testing.T) {
	header, _, _ := sampleInvoice()
	repo := &fakeInvoiceRepo{
		storedHeader: header,
		storedDetails: []*entity.InvoiceDetail{
			{PartKey: header.CUFE + "_1-A", CUFE: header.CUFE, Linea: "1-A",
				Description: "Servicio profesional", Total: decimal.RequireFromString("107.00")},
		},
	}
	uc := invoices.NewGetInvoiceUseCase(repo)

	got, details, err := uc.Get(context.Background(), header.CUFE)
	require.NoError(t, err)
	assert.Equal(t, header.CUFE, got.CUFE)
	require.Len(t, details, 1)
	// El rótulo de línea es texto: vuelve de la lectura tal cual se guardó.
	assert.Equal(t, "1-A", details[0].Linea)
}

func TestGetInvoice_NoExiste(t *testing.T) {
	uc := invoices.NewGetInvoiceUseCase(&fakeInvoiceRepo{})

	_, _, err := uc.Get(context.Background(), "FE-inexistente")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetInvoice_FallaDeLectura(t *testing.T) {
	header, _, _ := sampleInvoice()
	repo := &fakeInvoiceRepo{storedHeader: header, getErr: errors.New("pool timeout")}
	uc := invoices.NewGetInvoiceUseCase(repo)

	_, _, err := uc.Get(context.Background(), header.CUFE)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
