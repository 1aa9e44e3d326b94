package handler

import (
	"time"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/feed"
)

// Order — wire-представление заказа
type Order struct {
	ID           string    `json:"id" validate:"required"`
	KodeOrder    string    `json:"kode_order,omitempty"`
	Service      string    `json:"service" validate:"required,oneof=RIDE SEND FOOD SHOP"`
	Tarif        int       `json:"tarif" validate:"gte=0"`
	TitikJemput  string    `json:"titik_jemput,omitempty"`
	AlamatJemput string    `json:"alamat_jemput,omitempty"`
	TitikAntar   string    `json:"titik_antar,omitempty"`
	AlamatAntar  string    `json:"alamat_antar,omitempty"`
	Produk       []Product `json:"produk,omitempty" validate:"dive"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    int64     `json:"created_at,omitempty"`
	IDKurir      string    `json:"id_kurir,omitempty"`
	KurirName    string    `json:"kurir_name,omitempty"`
	AcceptedAt   int64     `json:"accepted_at,omitempty"`
	UpdatedAt    int64     `json:"updated_at,omitempty"`
}

// Product — позиция в FOOD/SHOP заказе
type Product struct {
	Nama   string `json:"nama" validate:"required"`
	Harga  int    `json:"harga" validate:"gte=0"`
	Jumlah int    `json:"jumlah" validate:"gte=1"`
	Note   string `json:"note,omitempty"`
}

// AvailableOrder — заказ в ленте курьера с производным отсчётом
type AvailableOrder struct {
	Order
	TimeRemaining int `json:"time_remaining"`
}

func ProductEntityToJSON(p entities.Product) Product {
	return Product{Nama: p.Nama, Harga: p.Harga, Jumlah: p.Jumlah, Note: p.Note}
}

func ProductJSONToEntity(p Product) entities.Product {
	return entities.Product{Nama: p.Nama, Harga: p.Harga, Jumlah: p.Jumlah, Note: p.Note}
}

func OrderEntityToJSON(o entities.Order) Order {
	order := Order{
		ID:           o.ID,
		KodeOrder:    o.KodeOrder,
		Service:      string(o.Service),
		Tarif:        o.Tarif,
		TitikJemput:  o.TitikJemput,
		AlamatJemput: o.AlamatJemput,
		TitikAntar:   o.TitikAntar,
		AlamatAntar:  o.AlamatAntar,
		Status:       string(o.Status),
		IDKurir:      o.IDKurir,
		KurirName:    o.KurirName,
	}

	if !o.CreatedAt.IsZero() {
		order.CreatedAt = o.CreatedAt.UnixMilli()
	}
	if o.AcceptedAt != nil {
		order.AcceptedAt = o.AcceptedAt.UnixMilli()
	}
	if o.UpdatedAt != nil {
		order.UpdatedAt = o.UpdatedAt.UnixMilli()
	}

	if len(o.Produk) > 0 {
		order.Produk = make([]Product, 0, len(o.Produk))
		for _, p := range o.Produk {
			order.Produk = append(order.Produk, ProductEntityToJSON(p))
		}
	}

	return order
}

func OrderJSONToEntity(o Order) entities.Order {
	order := entities.Order{
		ID:           o.ID,
		KodeOrder:    o.KodeOrder,
		Service:      entities.Service(o.Service),
		Tarif:        o.Tarif,
		TitikJemput:  o.TitikJemput,
		AlamatJemput: o.AlamatJemput,
		TitikAntar:   o.TitikAntar,
		AlamatAntar:  o.AlamatAntar,
		Status:       entities.Status(o.Status),
		IDKurir:      o.IDKurir,
		KurirName:    o.KurirName,
	}

	if o.CreatedAt > 0 {
		order.CreatedAt = time.UnixMilli(o.CreatedAt)
	}
	if o.AcceptedAt > 0 {
		t := time.UnixMilli(o.AcceptedAt)
		order.AcceptedAt = &t
	}
	if o.UpdatedAt > 0 {
		t := time.UnixMilli(o.UpdatedAt)
		order.UpdatedAt = &t
	}

	if len(o.Produk) > 0 {
		order.Produk = make([]entities.Product, 0, len(o.Produk))
		for _, p := range o.Produk {
			order.Produk = append(order.Produk, ProductJSONToEntity(p))
		}
	}

	return order
}

func AvailableOrderToJSON(o feed.AvailableOrder) AvailableOrder {
	return AvailableOrder{
		Order:         OrderEntityToJSON(o.Order),
		TimeRemaining: o.TimeRemaining,
	}
}

func AvailableOrdersToJSON(orders []feed.AvailableOrder) []AvailableOrder {
	out := make([]AvailableOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, AvailableOrderToJSON(o))
	}
	return out
}
