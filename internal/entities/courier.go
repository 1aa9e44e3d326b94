package entities

type Product struct {
	Nama   string
	Harga  int
	Jumlah int
	Note   string
}

// Courier — идентичность курьера, принимающего заказ.
// Передаётся явным параметром, а не глобальным "текущим пользователем".
type Courier struct {
	ID   string
	Name string
}
