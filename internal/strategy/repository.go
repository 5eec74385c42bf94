package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository on PostgreSQL.
// ⭐ SSOT: 시그널 저장/조회는 여기서만 (explanation은 JSONB)
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// Save upserts one signal keyed by (strategy_id, symbol, signal_date).
func (r *SignalRepository) Save(ctx context.Context, sig *contracts.Signal) error {
	explanation, err := json.Marshal(sig.Explanation)
	if err != nil {
		return fmt.Errorf("marshal explanation: %w", err)
	}

	query := `
		INSERT INTO strategy.signals (
			strategy_id, symbol, signal_date, signal_type,
			target_exposure, momentum_20, explanation
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (strategy_id, symbol, signal_date) DO UPDATE SET
			signal_type = EXCLUDED.signal_type,
			target_exposure = EXCLUDED.target_exposure,
			momentum_20 = EXCLUDED.momentum_20,
			explanation = EXCLUDED.explanation,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		sig.StrategyID, sig.Symbol, sig.Date, string(sig.Type),
		sig.TargetExposure, sig.Momentum20, explanation,
	)
	return err
}

// GetByKey retrieves one signal with its full explanation.
func (r *SignalRepository) GetByKey(ctx context.Context, strategyID, symbol string, date time.Time) (*contracts.Signal, error) {
	query := `
		SELECT strategy_id, symbol, signal_date, signal_type,
		       target_exposure, momentum_20, explanation
		FROM strategy.signals
		WHERE strategy_id = $1 AND symbol = $2 AND signal_date = $3
	`

	sig, err := scanSignal(r.pool.QueryRow(ctx, query, strategyID, symbol, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &contracts.MissingDataError{Kind: "signal", Symbol: symbol, Date: date}
		}
		return nil, fmt.Errorf("get signal: %w", err)
	}
	return sig, nil
}

// GetPrior retrieves up to limit signals strictly before date, newest first.
func (r *SignalRepository) GetPrior(ctx context.Context, strategyID, symbol string, date time.Time, limit int) ([]*contracts.Signal, error) {
	query := `
		SELECT strategy_id, symbol, signal_date, signal_type,
		       target_exposure, momentum_20, explanation
		FROM strategy.signals
		WHERE strategy_id = $1 AND symbol = $2 AND signal_date < $3
		ORDER BY signal_date DESC
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, strategyID, symbol, date, limit)
	if err != nil {
		return nil, fmt.Errorf("query prior signals: %w", err)
	}
	defer rows.Close()

	var sigs []*contracts.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

// CountByType counts signals per type over [from, to].
func (r *SignalRepository) CountByType(ctx context.Context, strategyID string, from, to time.Time) (map[contracts.SignalType]int, error) {
	query := `
		SELECT signal_type, COUNT(*)
		FROM strategy.signals
		WHERE strategy_id = $1 AND signal_date BETWEEN $2 AND $3
		GROUP BY signal_type
	`

	rows, err := r.pool.Query(ctx, query, strategyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count signals: %w", err)
	}
	defer rows.Close()

	counts := make(map[contracts.SignalType]int)
	for rows.Next() {
		var sigType string
		var n int
		if err := rows.Scan(&sigType, &n); err != nil {
			return nil, err
		}
		counts[contracts.SignalType(sigType)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*contracts.Signal, error) {
	var sig contracts.Signal
	var sigType string
	var explanation []byte
	if err := row.Scan(
		&sig.StrategyID, &sig.Symbol, &sig.Date, &sigType,
		&sig.TargetExposure, &sig.Momentum20, &explanation,
	); err != nil {
		return nil, err
	}
	sig.Type = contracts.SignalType(sigType)
	if err := json.Unmarshal(explanation, &sig.Explanation); err != nil {
		return nil, fmt.Errorf("unmarshal explanation: %w", err)
	}
	return &sig, nil
}

// RegimeRepository implements contracts.RegimeRepository on PostgreSQL.
// Regime states duplicate the regime slice of the explanation for fast
// explainability lookups.
type RegimeRepository struct {
	pool *pgxpool.Pool
}

// NewRegimeRepository creates a new regime repository.
func NewRegimeRepository(pool *pgxpool.Pool) *RegimeRepository {
	return &RegimeRepository{pool: pool}
}

// Save upserts one regime state keyed by (strategy_id, symbol, state_date).
func (r *RegimeRepository) Save(ctx context.Context, st *contracts.RegimeState) error {
	rules, err := json.Marshal(st.Rules)
	if err != nil {
		return fmt.Errorf("marshal regime rules: %w", err)
	}

	query := `
		INSERT INTO strategy.regime_states (strategy_id, symbol, state_date, regime_on, rules)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (strategy_id, symbol, state_date) DO UPDATE SET
			regime_on = EXCLUDED.regime_on,
			rules = EXCLUDED.rules,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query, st.StrategyID, st.Symbol, st.Date, st.RegimeOn, rules)
	return err
}

// GetByKey retrieves one regime state.
func (r *RegimeRepository) GetByKey(ctx context.Context, strategyID, symbol string, date time.Time) (*contracts.RegimeState, error) {
	query := `
		SELECT strategy_id, symbol, state_date, regime_on, rules
		FROM strategy.regime_states
		WHERE strategy_id = $1 AND symbol = $2 AND state_date = $3
	`

	var st contracts.RegimeState
	var rules []byte
	err := r.pool.QueryRow(ctx, query, strategyID, symbol, date).Scan(
		&st.StrategyID, &st.Symbol, &st.Date, &st.RegimeOn, &rules,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &contracts.MissingDataError{Kind: "regime_state", Symbol: symbol, Date: date}
		}
		return nil, fmt.Errorf("get regime state: %w", err)
	}
	if err := json.Unmarshal(rules, &st.Rules); err != nil {
		return nil, fmt.Errorf("unmarshal regime rules: %w", err)
	}
	return &st, nil
}

// MetadataRepository implements contracts.StrategyRepository on PostgreSQL.
type MetadataRepository struct {
	pool *pgxpool.Pool
}

// NewMetadataRepository creates a new strategy metadata repository.
func NewMetadataRepository(pool *pgxpool.Pool) *MetadataRepository {
	return &MetadataRepository{pool: pool}
}

// Get retrieves the metadata singleton for a strategy.
func (r *MetadataRepository) Get(ctx context.Context, strategyID string) (*contracts.StrategyMetadata, error) {
	query := `
		SELECT strategy_id, name, version, parameters, config_hash, is_active, created_at
		FROM strategy.strategies
		WHERE strategy_id = $1
	`

	var meta contracts.StrategyMetadata
	var params []byte
	err := r.pool.QueryRow(ctx, query, strategyID).Scan(
		&meta.StrategyID, &meta.Name, &meta.Version, &params,
		&meta.ConfigHash, &meta.IsActive, &meta.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get strategy metadata: %w", err)
	}
	meta.Parameters = params
	return &meta, nil
}

// Ensure inserts the metadata when missing; an existing row wins.
// 싱글톤: 최초 1회만 생성, 이후에는 읽기 전용
func (r *MetadataRepository) Ensure(ctx context.Context, meta *contracts.StrategyMetadata) (*contracts.StrategyMetadata, error) {
	query := `
		INSERT INTO strategy.strategies (strategy_id, name, version, parameters, config_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (strategy_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		meta.StrategyID, meta.Name, meta.Version, []byte(meta.Parameters),
		meta.ConfigHash, meta.IsActive, meta.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure strategy metadata: %w", err)
	}
	return r.Get(ctx, meta.StrategyID)
}
