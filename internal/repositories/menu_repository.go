package repositories

import (
	"context"
	"database/sql"

	"restaurant_pos/internal/models"

	"github.com/shopspring/decimal"
)

// VariantRepository reads the priced menu.
type VariantRepository interface {
	List(ctx context.Context, onlyAvailable bool) ([]models.Variant, error)
	GetByID(ctx context.Context, id int64) (*models.Variant, error)
}

// CouponRepository reads discount coupons.
type CouponRepository interface {
	List(ctx context.Context) ([]models.Coupon, error)
}

// SettingRepository reads restaurant settings.
type SettingRepository interface {
	Get(ctx context.Context, key string) (*models.ApplicationSetting, error)
}

type variantRepository struct {
	db *sql.DB
}

// NewVariantRepository creates a Postgres backed VariantRepository.
func NewVariantRepository(db *sql.DB) VariantRepository {
	return &variantRepository{db: db}
}

const selectVariantFields = `
	v.id, v.product_id, p.name, v.name, v.price, v.is_available, v.created_at, v.updated_at
	FROM variants v
	JOIN products p ON p.id = v.product_id
`

func scanVariant(row scanner) (*models.Variant, error) {
	var v models.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.ProductName, &v.Name, &v.Price, &v.IsAvailable, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepository) List(ctx context.Context, onlyAvailable bool) ([]models.Variant, error) {
	query := "SELECT " + selectVariantFields
	if onlyAvailable {
		query += " WHERE v.is_available = TRUE"
	}
	query += " ORDER BY p.name, v.price"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapDBError("listing variants", err)
	}
	defer rows.Close()

	variants := []models.Variant{}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, wrapDBError("scanning variant", err)
		}
		variants = append(variants, *v)
	}
	return variants, wrapRowsErr("iterating variants", rows.Err())
}

func (r *variantRepository) GetByID(ctx context.Context, id int64) (*models.Variant, error) {
	v, err := scanVariant(r.db.QueryRowContext(ctx, "SELECT "+selectVariantFields+" WHERE v.id = $1", id))
	if err != nil {
		return nil, wrapDBError("getting variant", err)
	}
	return v, nil
}

type couponRepository struct {
	db *sql.DB
}

// NewCouponRepository creates a Postgres backed CouponRepository.
func NewCouponRepository(db *sql.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) List(ctx context.Context) ([]models.Coupon, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, discount_type, value, is_active, expires_at, min_order_amount, usage_limit
		 FROM coupons ORDER BY code`)
	if err != nil {
		return nil, wrapDBError("listing coupons", err)
	}
	defer rows.Close()

	coupons := []models.Coupon{}
	for rows.Next() {
		var c models.Coupon
		var expiresAt sql.NullTime
		var minOrder decimal.NullDecimal
		var usageLimit sql.NullInt32
		if err := rows.Scan(&c.ID, &c.Code, &c.DiscountType, &c.Value, &c.IsActive, &expiresAt, &minOrder, &usageLimit); err != nil {
			return nil, wrapDBError("scanning coupon", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			c.ExpiresAt = &t
		}
		if minOrder.Valid {
			m := minOrder.Decimal
			c.MinOrderAmount = &m
		}
		if usageLimit.Valid {
			n := int(usageLimit.Int32)
			c.UsageLimit = &n
		}
		coupons = append(coupons, c)
	}
	return coupons, wrapRowsErr("iterating coupons", rows.Err())
}

type settingRepository struct {
	db *sql.DB
}

// NewSettingRepository creates a Postgres backed SettingRepository.
func NewSettingRepository(db *sql.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, key string) (*models.ApplicationSetting, error) {
	var s models.ApplicationSetting
	var value, description sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, setting_key, setting_value, description, created_at, updated_at
		 FROM application_settings WHERE setting_key = $1`, key,
	).Scan(&s.ID, &s.SettingKey, &value, &description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, wrapDBError("getting setting "+key, err)
	}
	if value.Valid {
		s.SettingValue = &value.String
	}
	if description.Valid {
		s.Description = &description.String
	}
	return &s, nil
}
