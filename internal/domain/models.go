package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownField   = errors.New("unknown entry field")
	ErrInvalidDay     = errors.New("invalid day of month")
)

// Section is one of the two independently managed inventory units.
type Section string

const (
	SectionGudang Section = "gudang"
	SectionBooth  Section = "booth"
)

// Sections lists every section in display order.
var Sections = []Section{SectionGudang, SectionBooth}

func ParseSection(raw string) (Section, error) {
	switch Section(strings.ToLower(strings.TrimSpace(raw))) {
	case SectionGudang:
		return SectionGudang, nil
	case SectionBooth:
		return SectionBooth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, raw)
	}
}

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type ProductCreateRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Unit      string          `json:"unit" validate:"required,max=32"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"min=0"`
}

type ProductUpdateRequest struct {
	Name      *string          `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Unit      *string          `json:"unit,omitempty" validate:"omitempty,min=1,max=32"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// Slot identifies an entry inside the viewed month. Watermarks are keyed by it.
type Slot struct {
	Section   Section `json:"section"`
	Day       int     `json:"day"`
	ProductID string  `json:"product_id"`
}

func (s Slot) String() string {
	return fmt.Sprintf("%s:%d:%s", s.Section, s.Day, s.ProductID)
}

// EntryKey is the natural key of a persisted StockEntry.
type EntryKey struct {
	Slot
	Period Period `json:"period"`
}

// StockEntry is the raw movement record for one product on one day of one section.
// A zero OpeningStock means no manual opening override was entered.
type StockEntry struct {
	ProductID      string          `json:"product_id"`
	Section        Section         `json:"section"`
	Day            int             `json:"day"`
	Month          time.Month      `json:"month"`
	Year           int             `json:"year"`
	OpeningStock   decimal.Decimal `json:"opening_stock"`
	StockIn        decimal.Decimal `json:"stock_in"`
	StockOut       decimal.Decimal `json:"stock_out"`
	Description    string          `json:"description"`
	LastModifiedBy string          `json:"last_modified_by,omitempty"`
	LastModifiedAt time.Time       `json:"last_modified_at"`
}

func (e StockEntry) Slot() Slot {
	return Slot{Section: e.Section, Day: e.Day, ProductID: e.ProductID}
}

func (e StockEntry) Period() Period {
	return Period{Year: e.Year, Month: e.Month}
}

func (e StockEntry) Key() EntryKey {
	return EntryKey{Slot: e.Slot(), Period: e.Period()}
}

// Closing is the previous month's closing balance per section and product.
type Closing map[Section]map[string]decimal.Decimal

func (c Closing) Lookup(section Section, productID string) (decimal.Decimal, bool) {
	products, ok := c[section]
	if !ok {
		return decimal.Zero, false
	}
	val, ok := products[productID]
	return val, ok
}

func (c Closing) Set(section Section, productID string, value decimal.Decimal) {
	if c[section] == nil {
		c[section] = make(map[string]decimal.Decimal)
	}
	c[section][productID] = value
}

type CalculatedStock struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	Unit           string          `json:"unit"`
	Section        Section         `json:"section"`
	Day            int             `json:"day"`
	InitialStock   decimal.Decimal `json:"initial_stock"`
	StockIn        decimal.Decimal `json:"stock_in"`
	StockOut       decimal.Decimal `json:"stock_out"`
	EndStock       decimal.Decimal `json:"end_stock"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Description    string          `json:"description"`
	LastModifiedBy string          `json:"last_modified_by,omitempty"`
	LastModifiedAt *time.Time      `json:"last_modified_at,omitempty"`
}

// EntryChange is one notification on the change feed: the full new state of a row.
type EntryChange struct {
	Entry  StockEntry `json:"entry"`
	Source string     `json:"source,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,excludesall= \t\r\n"`
	Name     string `json:"name" validate:"required,max=80"`
	Role     string `json:"role" validate:"required,oneof=admin staff"`
	Password string `json:"password" validate:"required,min=6"`
}

type UserUpdateRequest struct {
	Active *bool `json:"is_active,omitempty"`
}
