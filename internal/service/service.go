package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mahalpos/internal/cache"
	"mahalpos/internal/codegen"
	"mahalpos/internal/domain"
	"mahalpos/internal/receiptno"
	"mahalpos/internal/store"
)

const LowStockThreshold = 10

var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrForbidden = errors.New("admin role required")
)

// InvalidCartError reports which submitted cart line failed validation.
// Line is 1-based to match what the cashier sees on screen.
type InvalidCartError struct {
	Line   int
	Reason string
}

func (e *InvalidCartError) Error() string {
	return fmt.Sprintf("invalid cart line %d: %s", e.Line, e.Reason)
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	products cache.ProductCache
	cacheTTL time.Duration
}

func New(repo store.Repository, products cache.ProductCache, cacheTTL time.Duration) *Service {
	if products == nil {
		products = cache.NoopProductCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:     repo,
		products: products,
		cacheTTL: cacheTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(query))
}

// LookupProduct serves the scan-to-cart path through the product cache.
// A cached hit may lag a concurrent checkout by up to the cache TTL; the
// stock check at commit time is what actually guards inventory.
func (s *Service) LookupProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if cached, ok, err := s.products.Get(ctx, id); err != nil {
		log.Printf("[service] WARN: product cache get id=%d: %v", id, err)
	} else if ok {
		return cached, nil
	}

	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.products.Set(ctx, id, product, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: product cache set id=%d: %v", id, err)
	}

	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, ErrForbidden
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Barcode = strings.TrimSpace(req.Barcode)

	if req.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || price.IsNegative() {
		return nil, store.ErrInvalidRecord
	}
	if req.Quantity < 0 {
		return nil, store.ErrInvalidRecord
	}
	if req.Barcode != "" && !codegen.Validate(req.Barcode) {
		return nil, store.ErrInvalidRecord
	}

	if req.Code == "" {
		req.Code = codegen.NewProductCode()
	}
	if req.Barcode == "" {
		req.Barcode = codegen.NewBarcode()
	}

	product := domain.Product{
		ID:          req.ID,
		Name:        req.Name,
		Price:       price,
		Quantity:    req.Quantity,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Barcode:     req.Barcode,
		Code:        req.Code,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	s.invalidateProducts(ctx, created.ID)
	return created, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrForbidden
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.invalidateProducts(ctx, id)
	return nil
}

func (s *Service) GenerateCodes() domain.CodegenResponse {
	return domain.CodegenResponse{
		Code:    codegen.NewProductCode(),
		Barcode: codegen.NewBarcode(),
	}
}

// Checkout validates and prices the submitted cart, then hands the result to
// the repository as one atomic sale. Validation failures never reach the
// store; store failures leave no partial state behind.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	if len(req.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]domain.SaleLine, 0, len(req.Cart))
	subtotal := decimal.Zero
	for i, cartLine := range req.Cart {
		lineNo := i + 1
		if cartLine.Quantity < 1 {
			return nil, &InvalidCartError{Line: lineNo, Reason: "quantity must be at least 1"}
		}

		if !hasValue(cartLine.Price) {
			return nil, &InvalidCartError{Line: lineNo, Reason: "price is required"}
		}
		price, err := parseAmount(cartLine.Price)
		if err != nil {
			return nil, &InvalidCartError{Line: lineNo, Reason: "price is not a valid number"}
		}
		if price.IsNegative() {
			return nil, &InvalidCartError{Line: lineNo, Reason: "price must not be negative"}
		}

		lineTotal := price.Mul(decimal.NewFromInt(int64(cartLine.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, domain.SaleLine{
			ProductID: cartLine.ProductID,
			Name:      cartLine.Name,
			UnitPrice: price,
			Quantity:  cartLine.Quantity,
			Total:     lineTotal,
		})
	}

	discount := decimal.Zero
	if hasValue(req.Discount) {
		parsed, err := parseAmount(req.Discount)
		if err != nil {
			return nil, &InvalidCartError{Line: 0, Reason: "discount is not a valid number"}
		}
		if parsed.IsNegative() || parsed.GreaterThan(subtotal) {
			return nil, &InvalidCartError{Line: 0, Reason: "discount must be between 0 and the cart subtotal"}
		}
		discount = parsed
	}

	taxRate := decimal.Zero
	if hasValue(req.TaxRatePercent) {
		parsed, err := parseAmount(req.TaxRatePercent)
		if err != nil {
			return nil, &InvalidCartError{Line: 0, Reason: "tax rate is not a valid number"}
		}
		if parsed.IsNegative() || parsed.GreaterThan(decimal.NewFromInt(100)) {
			return nil, &InvalidCartError{Line: 0, Reason: "tax rate must be between 0 and 100"}
		}
		taxRate = parsed
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)
	total := taxable.Add(tax)

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = "cash"
	}

	sale := domain.Sale{
		Date:          time.Now().UTC(),
		PaymentMethod: method,
		Discount:      discount,
		Tax:           tax,
		Total:         total,
		Lines:         lines,
	}

	var receipt *domain.Receipt
	for attempt := 0; attempt < 2; attempt++ {
		sale.ReceiptNumber = receiptno.New()
		sale.CashNote = fmt.Sprintf("sales (%s) - receipt %s", method, sale.ReceiptNumber)

		var err error
		receipt, err = s.repo.CommitSale(ctx, sale)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrAlreadyExists) && attempt == 0 {
			log.Printf("[service] WARN: receipt number collision on %s, retrying", sale.ReceiptNumber)
			continue
		}
		return nil, err
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	s.invalidateProducts(ctx, ids...)

	return &domain.CheckoutResponse{
		Success:       true,
		ReceiptNumber: receipt.ReceiptNumber,
		Total:         receipt.Total,
	}, nil
}

func (s *Service) GetReceipt(ctx context.Context, receiptNumber string) (*domain.Receipt, error) {
	return s.repo.GetReceiptByNumber(ctx, strings.TrimSpace(receiptNumber))
}

func (s *Service) AppendCashEntry(ctx context.Context, req domain.CashEntryCreateRequest) (*domain.CashEntry, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, ErrForbidden
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, store.ErrInvalidRecord
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return nil, store.ErrInvalidRecord
	}

	return s.repo.AppendCashEntry(ctx, domain.CashEntry{
		Amount:    amount,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Service) CashLedger(ctx context.Context, limit int) (*domain.CashLedgerResponse, error) {
	entries, err := s.repo.ListCashEntries(ctx, limit)
	if err != nil {
		return nil, err
	}
	balance, err := s.repo.CashBalance(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.CashLedgerResponse{
		Entries: entries,
		Balance: balance,
	}, nil
}

func (s *Service) DailyReport(ctx context.Context, day time.Time) (*domain.DailyReport, error) {
	sales, err := s.repo.ListDailySales(ctx, day)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.repo.ListLowStock(ctx, LowStockThreshold)
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	byProduct := make(map[string]int)
	for _, sale := range sales {
		revenue = revenue.Add(sale.Total)
		byProduct[sale.ProductName] += sale.Quantity
	}

	top := make([]domain.DailyReportProduct, 0, len(byProduct))
	for name, qty := range byProduct {
		top = append(top, domain.DailyReportProduct{Name: name, Quantity: qty})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Quantity != top[j].Quantity {
			return top[i].Quantity > top[j].Quantity
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > 5 {
		top = top[:5]
	}

	return &domain.DailyReport{
		Date:         day.UTC().Format("2006-01-02"),
		TotalRevenue: revenue,
		SalesCount:   len(sales),
		TopProducts:  top,
		LowStock:     lowStock,
		Sales:        sales,
	}, nil
}

func (s *Service) invalidateProducts(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	if err := s.products.Invalidate(ctx, ids...); err != nil {
		log.Printf("[service] WARN: product cache invalidate: %v", err)
	}
}

// hasValue reports whether the field was actually submitted: an absent field
// and an explicit JSON null both count as no value.
func hasValue(raw domain.RawJSON) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

// parseAmount accepts a JSON number or a quoted numeric string and parses it
// exactly, without going through float64. A missing or null value is an
// error; callers that treat absence as zero must check hasValue first.
func parseAmount(raw domain.RawJSON) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decimal.Zero, errors.New("no value submitted")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(trimmed), &unquoted); err != nil {
			return decimal.Zero, err
		}
		trimmed = strings.TrimSpace(unquoted)
	}
	return decimal.NewFromString(trimmed)
}
