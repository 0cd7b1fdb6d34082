package requests

import "math/rand/v2"

// Alphabet: 62 символа, из которых собирается код заявки.
const Alphabet = "0123456789qwertyuiopasdfghjklzxcvbnmQWERTYUIOPASDFGHJKLZXCVBNM"

// CodeLen: длина кода. 62^2 = 3844 одновременно ожидающих заявки.
const CodeLen = 2

// MaxCodes: емкость пространства кодов.
const MaxCodes = len(Alphabet) * len(Alphabet)

// Allocator выдает свободные коды.
// Сам не хранит состояние: занятость проверяется через taken, а атомарность
// проверки и вставки обеспечивает Store, вызывая Allocate под своей блокировкой.
type Allocator struct {
	next func() string
}

func NewAllocator() *Allocator {
	return &Allocator{next: randomCode}
}

// Allocate перебирает случайные коды, пока не найдет свободный.
// Ограничения на число попыток нет: заявки живут недолго и пространство почти всегда разрежено.
func (a *Allocator) Allocate(taken func(code string) bool) (code string, attempts int) {
	for {
		attempts++
		code = a.next()
		if !taken(code) {
			return code, attempts
		}
	}
}

func randomCode() string {
	var b [CodeLen]byte
	for i := range b {
		b[i] = Alphabet[rand.IntN(len(Alphabet))]
	}
	return string(b[:])
}
