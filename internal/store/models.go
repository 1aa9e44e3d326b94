package store

import (
	"time"

	"github.com/mitraexpress/dispatch-service/internal/entities"
)

// Record — wire-формат записи заказа в пуле. Временные метки в unix millis.
type Record struct {
	ID           string    `json:"id"`
	KodeOrder    string    `json:"kode_order"`
	Service      string    `json:"service"`
	Tarif        int       `json:"tarif"`
	TitikJemput  string    `json:"titik_jemput"`
	AlamatJemput string    `json:"alamat_jemput"`
	TitikAntar   string    `json:"titik_antar"`
	AlamatAntar  string    `json:"alamat_antar"`
	Produk       []Product `json:"produk,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    int64     `json:"created_at"`
	IDKurir      string    `json:"id_kurir,omitempty"`
	KurirName    string    `json:"kurir_name,omitempty"`
	AcceptedAt   int64     `json:"accepted_at,omitempty"`
	UpdatedAt    int64     `json:"updated_at,omitempty"`
}

type Product struct {
	Nama   string `json:"nama"`
	Harga  int    `json:"harga"`
	Jumlah int    `json:"jumlah"`
	Note   string `json:"note,omitempty"`
}

func RecordToEntity(r Record) entities.Order {
	order := entities.Order{
		ID:           r.ID,
		KodeOrder:    r.KodeOrder,
		Service:      entities.Service(r.Service),
		Tarif:        r.Tarif,
		TitikJemput:  r.TitikJemput,
		AlamatJemput: r.AlamatJemput,
		TitikAntar:   r.TitikAntar,
		AlamatAntar:  r.AlamatAntar,
		Status:       entities.Status(r.Status),
		IDKurir:      r.IDKurir,
		KurirName:    r.KurirName,
	}

	if r.CreatedAt > 0 {
		order.CreatedAt = time.UnixMilli(r.CreatedAt)
	}
	if r.AcceptedAt > 0 {
		t := time.UnixMilli(r.AcceptedAt)
		order.AcceptedAt = &t
	}
	if r.UpdatedAt > 0 {
		t := time.UnixMilli(r.UpdatedAt)
		order.UpdatedAt = &t
	}

	if len(r.Produk) > 0 {
		order.Produk = make([]entities.Product, 0, len(r.Produk))
		for _, p := range r.Produk {
			order.Produk = append(order.Produk, entities.Product{
				Nama:   p.Nama,
				Harga:  p.Harga,
				Jumlah: p.Jumlah,
				Note:   p.Note,
			})
		}
	}

	return order
}

func EntityToRecord(o entities.Order) Record {
	record := Record{
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
		record.CreatedAt = o.CreatedAt.UnixMilli()
	}
	if o.AcceptedAt != nil {
		record.AcceptedAt = o.AcceptedAt.UnixMilli()
	}
	if o.UpdatedAt != nil {
		record.UpdatedAt = o.UpdatedAt.UnixMilli()
	}

	if len(o.Produk) > 0 {
		record.Produk = make([]Product, 0, len(o.Produk))
		for _, p := range o.Produk {
			record.Produk = append(record.Produk, Product{
				Nama:   p.Nama,
				Harga:  p.Harga,
				Jumlah: p.Jumlah,
				Note:   p.Note,
			})
		}
	}

	return record
}
