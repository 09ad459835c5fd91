package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"mahalpos/internal/codegen"
	"mahalpos/internal/domain"
	"mahalpos/internal/store"
)

type Store struct {
	mu               sync.RWMutex
	nextProductID    int64
	nextReceiptID    int64
	nextItemID       int64
	nextDailySaleID  int64
	nextCashID       int64
	products         map[int64]domain.Product
	receiptsByID     map[int64]*domain.Receipt
	receiptsByNumber map[string]int64
	dailySales       []domain.DailySale
	cashEntries      []domain.CashEntry
	usersByUsername  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		nextProductID:    1,
		nextReceiptID:    1,
		nextItemID:       1,
		nextDailySaleID:  1,
		nextCashID:       1,
		products:         make(map[int64]domain.Product),
		receiptsByID:     make(map[int64]*domain.Receipt),
		receiptsByNumber: make(map[string]int64),
		dailySales:       make([]domain.DailySale, 0, 128),
		cashEntries:      make([]domain.CashEntry, 0, 64),
		usersByUsername:  seedUsers(),
	}
}

// NewSeeded builds a store with a sample catalog for dev/demo mode, the same
// way the backend boots when DATABASE_URL is unset.
func NewSeeded() *Store {
	s := New()

	now := time.Now().UTC()
	seed := []struct {
		name     string
		price    string
		quantity int
		category string
	}{
		{"Sugar 1kg", "2.50", 80, "grocery"},
		{"Rice 5kg", "11.00", 45, "grocery"},
		{"Sunflower Oil 1L", "4.75", 60, "grocery"},
		{"Black Tea 250g", "3.20", 90, "beverage"},
		{"Ground Coffee 200g", "6.40", 35, "beverage"},
		{"Mineral Water 1.5L", "0.60", 200, "beverage"},
		{"Toast Bread", "1.10", 25, "bakery"},
		{"Eggs (tray of 30)", "5.90", 40, "dairy"},
		{"UHT Milk 1L", "1.35", 70, "dairy"},
		{"Dish Soap 500ml", "1.80", 55, "household"},
		{"Laundry Powder 1kg", "3.95", 30, "household"},
		{"Chocolate Bar", "0.85", 150, "snack"},
	}
	for _, row := range seed {
		price, err := decimal.NewFromString(row.price)
		if err != nil {
			log.Fatalf("[memory-store] bad seed price %q: %v", row.price, err)
		}
		id := s.nextProductID
		s.nextProductID++
		s.products[id] = domain.Product{
			ID:        id,
			Name:      row.name,
			Price:     price,
			Quantity:  row.quantity,
			Category:  row.category,
			Barcode:   codegen.NewBarcode(),
			Code:      codegen.NewProductCode(),
			CreatedAt: now,
		}
	}
	return s
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; unset
// variables fall back to dev defaults with a warning. These accounts are
// never used in production (the backend uses PostgreSQL when DATABASE_URL is
// set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) ListProducts(_ context.Context, query string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	return products, nil
}

func matchesQuery(p domain.Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Code), query) ||
		strings.Contains(p.Barcode, query)
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price.IsNegative() || product.Quantity < 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID != 0 {
		if _, exists := s.products[product.ID]; exists {
			return nil, store.ErrAlreadyExists
		}
		if product.ID >= s.nextProductID {
			s.nextProductID = product.ID + 1
		}
	} else {
		product.ID = s.nextProductID
		s.nextProductID++
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// CommitSale verifies stock for every resolvable line and applies all five
// effects inside one critical section. The check and the apply share the
// lock, so a concurrent checkout can never observe or create a partial
// state, and two checkouts cannot both drain the same last unit.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale) (*domain.Receipt, error) {
	if sale.ReceiptNumber == "" || len(sale.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidRecord
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receiptsByNumber[sale.ReceiptNumber]; exists {
		return nil, store.ErrAlreadyExists
	}

	// Stock check first, all-or-nothing. Off-catalog lines are recorded
	// with their submitted snapshots but never touch inventory.
	for _, line := range sale.Lines {
		product, exists := s.products[line.ProductID]
		if !exists {
			continue
		}
		if product.Quantity < line.Quantity {
			return nil, &store.InsufficientStockError{
				ProductID: line.ProductID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: product.Quantity,
			}
		}
	}

	date := sale.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	receipt := &domain.Receipt{
		ID:            s.nextReceiptID,
		ReceiptNumber: sale.ReceiptNumber,
		Date:          date,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		Discount:      sale.Discount,
		Tax:           sale.Tax,
		Items:         make([]domain.ReceiptItem, 0, len(sale.Lines)),
	}
	s.nextReceiptID++

	for _, line := range sale.Lines {
		receipt.Items = append(receipt.Items, domain.ReceiptItem{
			ID:          s.nextItemID,
			ReceiptID:   receipt.ID,
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
			Total:       line.Total,
		})
		s.nextItemID++

		if product, exists := s.products[line.ProductID]; exists {
			product.Quantity -= line.Quantity
			s.products[line.ProductID] = product
		}

		s.dailySales = append(s.dailySales, domain.DailySale{
			ID:          s.nextDailySaleID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
			Total:       line.Total,
			SoldAt:      date,
		})
		s.nextDailySaleID++
	}

	s.cashEntries = append(s.cashEntries, domain.CashEntry{
		ID:        s.nextCashID,
		Amount:    sale.Total,
		Note:      sale.CashNote,
		CreatedAt: date,
	})
	s.nextCashID++

	s.receiptsByID[receipt.ID] = receipt
	s.receiptsByNumber[receipt.ReceiptNumber] = receipt.ID

	return cloneReceipt(receipt), nil
}

func (s *Store) GetReceiptByNumber(_ context.Context, receiptNumber string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.receiptsByNumber[receiptNumber]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneReceipt(s.receiptsByID[id]), nil
}

func (s *Store) AppendCashEntry(_ context.Context, entry domain.CashEntry) (*domain.CashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextCashID
	s.nextCashID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.cashEntries = append(s.cashEntries, entry)
	saved := entry
	return &saved, nil
}

func (s *Store) ListCashEntries(_ context.Context, limit int) ([]domain.CashEntry, error) {
	if limit < 1 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashEntry, len(s.cashEntries))
	copy(result, s.cashEntries)
	slices.SortFunc(result, func(a, b domain.CashEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			if a.ID > b.ID {
				return -1
			}
			return 1
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CashBalance(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance := decimal.Zero
	for _, entry := range s.cashEntries {
		balance = balance.Add(entry.Amount)
	}
	return balance, nil
}

func (s *Store) ListDailySales(_ context.Context, day time.Time) ([]domain.DailySale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	result := make([]domain.DailySale, 0, 64)
	for _, sale := range s.dailySales {
		if sale.SoldAt.Before(dayStart) || !sale.SoldAt.Before(dayEnd) {
			continue
		}
		result = append(result, sale)
	}
	return result, nil
}

func (s *Store) ListLowStock(_ context.Context, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.Quantity < threshold {
			result = append(result, p)
		}
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		if a.Quantity == b.Quantity {
			return strings.Compare(a.Name, b.Name)
		}
		return a.Quantity - b.Quantity
	})
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrAlreadyExists
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneReceipt(src *domain.Receipt) *domain.Receipt {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.ReceiptItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
