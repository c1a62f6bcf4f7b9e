package postgres

import (
	"context"
	"fmt"

	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
	"github.com/tu-usuario/mef-invoices/internal/domain/repository"
)

var _ repository.MefPendingRepository = (*MefPendingRepo)(nil)

// MefPendingRepo cola durable de sumisiones fallidas. Append-only: cada
// intento fallido produce una fila nueva (pista de auditoría); no hay update
// ni delete desde este pipeline.
type MefPendingRepo struct {
	q Querier
}

// NewMefPendingRepository construye el adaptador. Pasar el pool: la escritura
// de recuperación corre en su propia transacción implícita, independiente de
// la transacción principal que falló.
func NewMefPendingRepository(q Querier) *MefPendingRepo {
	return &MefPendingRepo{q: q}
}

// Insert agrega la entrada y devuelve su id.
func (r *MefPendingRepo) Insert(ctx context.Context, e *entity.MefPending) (int64, error) {
	query := `
		INSERT INTO mef_pending (url, chat_id, reception_date, type_document, user_id, error_message, origin, ws_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	var id int64
	err := r.q.QueryRow(ctx, query,
		e.URL, e.ChatID, e.ReceptionDate, e.TypeDocument, e.UserID, e.ErrorMessage, e.Origin, e.WsID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert mef_pending: %w", err)
	}
	e.ID = id
	return id, nil
}
