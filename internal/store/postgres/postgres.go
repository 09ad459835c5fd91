package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"mahalpos/internal/domain"
	"mahalpos/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, quantity, category, description, barcode, code, created_at
		FROM products
		WHERE $1 = ''
			OR name ILIKE '%' || $1 || '%'
			OR code ILIKE '%' || $1 || '%'
			OR barcode LIKE '%' || $1 || '%'
		ORDER BY id
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, quantity, category, description, barcode, code, created_at
		FROM products
		WHERE id = $1
	`, id)

	var p domain.Product
	var category, description sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &category, &description, &p.Barcode, &p.Code, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.Category = category.String
	p.Description = description.String
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price.IsNegative() || product.Quantity < 0 {
		return nil, store.ErrInvalidRecord
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	var err error
	if product.ID != 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO products (id, name, price, quantity, category, description, barcode, code, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, product.ID, product.Name, product.Price, product.Quantity, nullIfEmpty(product.Category),
			nullIfEmpty(product.Description), product.Barcode, product.Code, product.CreatedAt)
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO products (name, price, quantity, category, description, barcode, code, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id
		`, product.Name, product.Price, product.Quantity, nullIfEmpty(product.Category),
			nullIfEmpty(product.Description), product.Barcode, product.Code, product.CreatedAt).Scan(&product.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CommitSale runs the whole checkout as one transaction. Stock is taken with
// a conditional decrement checked through rows-affected, never
// read-then-write: under the default isolation level the loser of a
// same-product race blocks on the row lock, re-evaluates the predicate once
// the winner commits, and fails with the named stock error rather than a
// serialization failure.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Receipt, error) {
	if sale.ReceiptNumber == "" || len(sale.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	date := sale.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	receipt := domain.Receipt{
		ReceiptNumber: sale.ReceiptNumber,
		Date:          date,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		Discount:      sale.Discount,
		Tax:           sale.Tax,
		Items:         make([]domain.ReceiptItem, 0, len(sale.Lines)),
	}

	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO receipts (receipt_number, date, total, payment_method, discount, tax)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, receipt.ReceiptNumber, receipt.Date, receipt.Total, receipt.PaymentMethod, receipt.Discount, receipt.Tax).Scan(&receipt.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, err
	}

	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidRecord
		}

		item := domain.ReceiptItem{
			ReceiptID:   receipt.ID,
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
			Total:       line.Total,
		}
		err = pgTx.QueryRowContext(ctx, `
			INSERT INTO receipt_items (receipt_id, product_id, product_name, quantity, price, total)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, item.ReceiptID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Total).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
		receipt.Items = append(receipt.Items, item)

		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1
			WHERE id = $2 AND quantity >= $1
		`, line.Quantity, line.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			// Either the product has too little stock, or the line is
			// off-catalog and inventory stays untouched.
			var name string
			var available int
			err := pgTx.QueryRowContext(ctx, `
				SELECT name, quantity FROM products WHERE id = $1
			`, line.ProductID).Scan(&name, &available)
			if err == nil {
				return nil, &store.InsufficientStockError{
					ProductID: line.ProductID,
					Name:      name,
					Requested: line.Quantity,
					Available: available,
				}
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		}

		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO daily_sales (product_name, quantity, price, total, sold_at)
			VALUES ($1,$2,$3,$4,$5)
		`, line.Name, line.Quantity, line.UnitPrice, line.Total, date)
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO cash_entries (amount, note, created_at)
		VALUES ($1,$2,$3)
	`, sale.Total, sale.CashNote, date)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &receipt, nil
}

func (s *Store) GetReceiptByNumber(ctx context.Context, receiptNumber string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, receipt_number, date, total, payment_method, discount, tax
		FROM receipts
		WHERE receipt_number = $1
	`, receiptNumber).Scan(&receipt.ID, &receipt.ReceiptNumber, &receipt.Date, &receipt.Total,
		&receipt.PaymentMethod, &receipt.Discount, &receipt.Tax)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	receipt.Date = receipt.Date.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, product_id, product_name, quantity, price, total
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY id
	`, receipt.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReceiptItem, 0, 8)
	for rows.Next() {
		var item domain.ReceiptItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	receipt.Items = items

	return &receipt, nil
}

func (s *Store) AppendCashEntry(ctx context.Context, entry domain.CashEntry) (*domain.CashEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cash_entries (amount, note, created_at)
		VALUES ($1,$2,$3)
		RETURNING id
	`, entry.Amount, entry.Note, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return nil, err
	}
	saved := entry
	return &saved, nil
}

func (s *Store) ListCashEntries(ctx context.Context, limit int) ([]domain.CashEntry, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, note, created_at
		FROM cash_entries
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashEntry, 0, limit)
	for rows.Next() {
		var entry domain.CashEntry
		if err := rows.Scan(&entry.ID, &entry.Amount, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CashBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM cash_entries
	`).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Store) ListDailySales(ctx context.Context, day time.Time) ([]domain.DailySale, error) {
	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_name, quantity, price, total, sold_at
		FROM daily_sales
		WHERE sold_at >= $1 AND sold_at < $2
		ORDER BY id
	`, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.DailySale, 0, 64)
	for rows.Next() {
		var sale domain.DailySale
		if err := rows.Scan(&sale.ID, &sale.ProductName, &sale.Quantity, &sale.Price, &sale.Total, &sale.SoldAt); err != nil {
			return nil, err
		}
		sale.SoldAt = sale.SoldAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, quantity, category, description, barcode, code, created_at
		FROM products
		WHERE quantity < $1
		ORDER BY quantity ASC, name
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if username == "" || password == "" {
		return store.ErrInvalidRecord
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanProduct(rows *sql.Rows) (domain.Product, error) {
	var p domain.Product
	var category, description sql.NullString
	if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &category, &description, &p.Barcode, &p.Code, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	p.Category = category.String
	p.Description = description.String
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
