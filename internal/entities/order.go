package entities

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"
)

type Service string

const (
	ServiceRide Service = "RIDE"
	ServiceSend Service = "SEND"
	ServiceFood Service = "FOOD"
	ServiceShop Service = "SHOP"
)

func (s Service) IsValid() bool {
	switch s {
	case ServiceRide, ServiceSend, ServiceFood, ServiceShop:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusSearching Status = "SEARCHING"
	StatusAssigned  Status = "ASSIGNED"
)

// SearchWindow задаёт время жизни заказа в пуле поиска курьера.
const SearchWindow = 300 * time.Second

type Order struct {
	ID        string
	KodeOrder string
	Service   Service
	Tarif     int

	TitikJemput  string
	AlamatJemput string
	TitikAntar   string
	AlamatAntar  string

	// Produk заполняется только для FOOD / SHOP заказов
	Produk []Product

	Status    Status
	CreatedAt time.Time

	IDKurir    string
	KurirName  string
	AcceptedAt *time.Time
	UpdatedAt  *time.Time
}

// TimeRemaining считает оставшееся время поиска в секундах, не меньше нуля.
// Отсутствующий created_at трактуется как "только что создан".
func (o Order) TimeRemaining(now time.Time) int {
	if o.CreatedAt.IsZero() {
		return int(SearchWindow / time.Second)
	}

	elapsed := int(now.Sub(o.CreatedAt) / time.Second)
	remaining := int(SearchWindow/time.Second) - elapsed

	if remaining < 0 {
		return 0
	}
	return remaining
}

func (o Order) Expired(now time.Time) bool {
	return o.TimeRemaining(now) == 0
}

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAlreadyTaken = errors.New("order already taken")
	ErrStoreUnavailable  = errors.New("order store unavailable")
	ErrInvalidOrder      = errors.New("invalid order")

	// ErrPublishAfterSave — заказ durable-сохранён, но публикация в пул
	// не прошла: заказ существует, но никому не разослан
	ErrPublishAfterSave = errors.New("order saved but not published")
)

func (o *Order) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Order) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	return dec.Decode(o)
}

func init() {
	gob.Register(Order{})
	gob.Register(Product{})
}
