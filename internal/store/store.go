package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"mahalpos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRecord     = errors.New("invalid record")
)

// InsufficientStockError names the product that blocked a checkout.
// It unwraps to ErrInsufficientStock so callers can keep using errors.Is.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q (id %d): requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Repository is the persistence boundary shared by the postgres and
// in-memory implementations. CommitSale is the only operation allowed to
// touch more than one entity family; everything else is single-entity.
type Repository interface {
	ListProducts(ctx context.Context, query string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	// CommitSale atomically persists a receipt with its item snapshots,
	// decrements catalog quantities for every resolvable line, appends one
	// daily-sale row per line and exactly one cash entry for the sale total.
	// On any failure nothing is left behind.
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Receipt, error)

	GetReceiptByNumber(ctx context.Context, receiptNumber string) (*domain.Receipt, error)

	AppendCashEntry(ctx context.Context, entry domain.CashEntry) (*domain.CashEntry, error)
	ListCashEntries(ctx context.Context, limit int) ([]domain.CashEntry, error)
	CashBalance(ctx context.Context) (decimal.Decimal, error)

	ListDailySales(ctx context.Context, day time.Time) ([]domain.DailySale, error)
	ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
