package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
)

type Product struct {
	Nama   string `json:"nama"`
	Harga  int    `json:"harga"`
	Jumlah int    `json:"jumlah"`
}

type Order struct {
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
}

var services = []string{"RIDE", "SEND", "FOOD", "SHOP"}

var places = []struct {
	label   string
	address string
}{
	{"Warung Bu Sri", "Jl. Merdeka No. 12, Bandung"},
	{"Toko Sinar Jaya", "Jl. Asia Afrika No. 88, Bandung"},
	{"RS Hasan Sadikin", "Jl. Pasteur No. 38, Bandung"},
	{"Kampus ITB", "Jl. Ganesha No. 10, Bandung"},
	{"Pasar Baru", "Jl. Otto Iskandardinata, Bandung"},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	writer := &kafka.Writer{
		Addr:     kafka.TCP("localhost:9092"),
		Topic:    "orders",
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			order := randomOrder()
			data, err := json.Marshal(order)
			if err != nil {
				log.Println("failed to marshal order:", err)
				continue
			}
			if err := writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(order.ID),
				Value: data,
			}); err != nil {
				log.Println("failed to write order:", err)
				continue
			}
			log.Println("published", order.ID, order.Service, order.Tarif)
		}
	}
}

func randomOrder() Order {
	service := services[rand.Intn(len(services))]
	pickup := places[rand.Intn(len(places))]
	dropoff := places[rand.Intn(len(places))]

	order := Order{
		ID:           randomID(16),
		KodeOrder:    fmt.Sprintf("MTR-%s", randomID(10)),
		Service:      service,
		Tarif:        (rand.Intn(90) + 10) * 1000,
		TitikJemput:  pickup.label,
		AlamatJemput: pickup.address,
		TitikAntar:   dropoff.label,
		AlamatAntar:  dropoff.address,
		Status:       "SEARCHING",
		CreatedAt:    time.Now().UnixMilli(),
	}

	if service == "FOOD" || service == "SHOP" {
		for range rand.Intn(3) + 1 {
			order.Produk = append(order.Produk, Product{
				Nama:   fmt.Sprintf("item-%s", randomID(4)),
				Harga:  (rand.Intn(40) + 5) * 1000,
				Jumlah: rand.Intn(3) + 1,
			})
		}
	}

	return order
}

func randomID(length int) string {
	chars := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	id := make([]rune, length)
	for i := range id {
		id[i] = chars[rand.Intn(len(chars))]
	}
	return string(id)
}
