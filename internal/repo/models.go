package repo

import (
	"database/sql"
	"time"

	"github.com/mitraexpress/dispatch-service/internal/entities"
)

type Order struct {
	ID           string         `db:"id"`
	KodeOrder    string         `db:"kode_order"`
	Service      string         `db:"service"`
	Tarif        int            `db:"tarif"`
	TitikJemput  sql.NullString `db:"titik_jemput"`
	AlamatJemput sql.NullString `db:"alamat_jemput"`
	TitikAntar   sql.NullString `db:"titik_antar"`
	AlamatAntar  sql.NullString `db:"alamat_antar"`
	Status       string         `db:"status"`
	CreatedAt    time.Time      `db:"created_at"`
	IDKurir      sql.NullString `db:"id_kurir"`
	KurirName    sql.NullString `db:"kurir_name"`
	AcceptedAt   sql.NullTime   `db:"accepted_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
}

type Product struct {
	OrderID string         `db:"order_id"`
	Nama    string         `db:"nama"`
	Harga   int            `db:"harga"`
	Jumlah  int            `db:"jumlah"`
	Note    sql.NullString `db:"note"`
}

func ProductToEntity(p Product) entities.Product {
	return entities.Product{
		Nama:   p.Nama,
		Harga:  p.Harga,
		Jumlah: p.Jumlah,
		Note:   nullStringToString(p.Note),
	}
}

func OrderToEntity(o Order, products []Product) entities.Order {
	order := entities.Order{
		ID:           o.ID,
		KodeOrder:    o.KodeOrder,
		Service:      entities.Service(o.Service),
		Tarif:        o.Tarif,
		TitikJemput:  nullStringToString(o.TitikJemput),
		AlamatJemput: nullStringToString(o.AlamatJemput),
		TitikAntar:   nullStringToString(o.TitikAntar),
		AlamatAntar:  nullStringToString(o.AlamatAntar),
		Status:       entities.Status(o.Status),
		CreatedAt:    o.CreatedAt,
		IDKurir:      nullStringToString(o.IDKurir),
		KurirName:    nullStringToString(o.KurirName),
	}

	if o.AcceptedAt.Valid {
		t := o.AcceptedAt.Time
		order.AcceptedAt = &t
	}
	if o.UpdatedAt.Valid {
		t := o.UpdatedAt.Time
		order.UpdatedAt = &t
	}

	if len(products) > 0 {
		order.Produk = make([]entities.Product, 0, len(products))
		for _, p := range products {
			order.Produk = append(order.Produk, ProductToEntity(p))
		}
	}

	return order
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
