// =============================================================================
// CSV Invoice Validator - Identity Directory
// =============================================================================
//
// The directory stores the issuers allowed to upload invoices and the
// customers those invoices are addressed to. It is the identity capability
// of the validation engine:
//   - issuer lookup by tax id
//   - customer lookup by tax id
//   - customer creation with create-or-fetch semantics: the tax id column
//     is unique and a losing concurrent insert returns the winner's row
//
// BACKENDS:
//   - sqlite   (default, single file or :memory:)
//   - postgres
//
// =============================================================================

package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ginjaninja78/csv-invoice-validator/internal/checksum"
	"github.com/ginjaninja78/csv-invoice-validator/internal/config"
	"github.com/ginjaninja78/csv-invoice-validator/internal/logger"
	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
)

// ErrIssuerNotFound is returned by Issuer when no issuer has the tax id.
var ErrIssuerNotFound = errors.New("issuer not found")

// =============================================================================
// MODELS
// =============================================================================

// IssuerModel is the database row of an issuer.
type IssuerModel struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	TaxID     string    `gorm:"size:20;not null;uniqueIndex"`
	Name      string    `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name.
func (IssuerModel) TableName() string { return "issuers" }

func (m IssuerModel) toDomain() types.Issuer {
	return types.Issuer{ID: m.ID, TaxID: m.TaxID, Name: m.Name}
}

// CustomerModel is the database row of a customer.
type CustomerModel struct {
	ID                uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	TaxID             string    `gorm:"size:20;not null;uniqueIndex"`
	Name              string    `gorm:"size:80;not null"`
	AccountingService string    `gorm:"size:10"`
	ManagementUnit    string    `gorm:"size:10"`
	ProcessingUnit    string    `gorm:"size:10"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName pins the table name.
func (CustomerModel) TableName() string { return "customers" }

func (m CustomerModel) toDomain() types.Customer {
	return types.Customer{
		ID:                m.ID,
		TaxID:             m.TaxID,
		Name:              m.Name,
		AccountingService: m.AccountingService,
		ManagementUnit:    m.ManagementUnit,
		ProcessingUnit:    m.ProcessingUnit,
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory is the gorm-backed identity store.
type Directory struct {
	db *gorm.DB
}

// New wraps an open gorm connection.
func New(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// Open connects to the configured backend.
//
// PARAMETERS:
//   - cfg: The store section of the configuration.
//   - logLevel: The application log level, mapped onto gorm's levels.
//   - log: The application logger; queries are logged under "gorm".
//
// RETURNS:
//   - The directory, migrated when cfg.AutoMigrate is set.
//   - An error if the connection or the migration fails.
func Open(cfg config.StoreSettings, logLevel string, log *zap.Logger) (*Directory, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(log, logger.GormLevel(logLevel)),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory store: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite serialises writers anyway, and each :memory: connection
		// would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	d := New(db)
	if cfg.AutoMigrate {
		if err := d.Migrate(context.Background()); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	return d, nil
}

// Migrate creates or updates the directory tables.
func (d *Directory) Migrate(ctx context.Context) error {
	if err := d.db.WithContext(ctx).AutoMigrate(&IssuerModel{}, &CustomerModel{}); err != nil {
		return fmt.Errorf("failed to migrate directory: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *Directory) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// =============================================================================
// ISSUERS
// =============================================================================

// FindIssuerByTaxID implements the engine's identity capability.
func (d *Directory) FindIssuerByTaxID(ctx context.Context, taxID string) (types.Issuer, bool, error) {
	var m IssuerModel
	err := d.db.WithContext(ctx).Where("tax_id = ?", taxID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Issuer{}, false, nil
	}
	if err != nil {
		return types.Issuer{}, false, fmt.Errorf("failed to find issuer: %w", err)
	}
	return m.toDomain(), true, nil
}

// Issuer returns the issuer with the tax id, or ErrIssuerNotFound.
func (d *Directory) Issuer(ctx context.Context, taxID string) (types.Issuer, error) {
	issuer, found, err := d.FindIssuerByTaxID(ctx, taxID)
	if err != nil {
		return types.Issuer{}, err
	}
	if !found {
		return types.Issuer{}, fmt.Errorf("%w: %s", ErrIssuerNotFound, taxID)
	}
	return issuer, nil
}

// RegisterIssuer stores an issuer, or returns the stored one when the tax
// id is already registered. Issuer tax ids are taken as registered by the
// operator; only customer tax ids go through the checksum.
func (d *Directory) RegisterIssuer(ctx context.Context, taxID, name string) (types.Issuer, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return types.Issuer{}, errors.New("issuer tax id can't be blank")
	}

	m := IssuerModel{ID: uuid.New(), TaxID: taxID, Name: name}
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tax_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return types.Issuer{}, fmt.Errorf("failed to register issuer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return d.Issuer(ctx, taxID)
	}
	return m.toDomain(), nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// FindCustomerByTaxID implements the engine's identity capability.
func (d *Directory) FindCustomerByTaxID(ctx context.Context, taxID string) (types.Customer, bool, error) {
	var m CustomerModel
	err := d.db.WithContext(ctx).Where("tax_id = ?", taxID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Customer{}, false, nil
	}
	if err != nil {
		return types.Customer{}, false, fmt.Errorf("failed to find customer: %w", err)
	}
	return m.toDomain(), true, nil
}

// CreateCustomer implements the engine's identity capability. The insert
// ignores a tax id conflict and re-reads the row instead, so two uploads
// racing on the same new customer end up with the same record.
func (d *Directory) CreateCustomer(ctx context.Context, fields types.CustomerFields) (types.Customer, error) {
	if problems := CheckCustomer(fields); len(problems) > 0 {
		return types.Customer{}, &types.InvalidCustomerError{TaxID: fields.TaxID, Problems: problems}
	}

	m := CustomerModel{
		ID:                uuid.New(),
		TaxID:             fields.TaxID,
		Name:              fields.Name,
		AccountingService: fields.AccountingService,
		ManagementUnit:    fields.ManagementUnit,
		ProcessingUnit:    fields.ProcessingUnit,
	}
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tax_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return types.Customer{}, fmt.Errorf("failed to create customer: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		existing, found, err := d.FindCustomerByTaxID(ctx, fields.TaxID)
		if err != nil {
			return types.Customer{}, err
		}
		if !found {
			return types.Customer{}, fmt.Errorf("customer %s vanished after conflicting insert", fields.TaxID)
		}
		return existing, nil
	}
	return m.toDomain(), nil
}

// CountCustomers returns the number of stored customers.
func (d *Directory) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&CustomerModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}

// ValidateTaxID implements the engine's identity capability.
func (d *Directory) ValidateTaxID(taxID string) bool {
	return checksum.ValidTaxID(taxID)
}
