package service

import (
	"strconv"

	"github.com/google/uuid"
)

// chatNamespace es el namespace UUIDv5 de las claves de chat.
var chatNamespace = uuid.MustParse("0d6c6f1e-3a52-4f7e-9b8a-5e1f4c2d7a90")

// ChatKey deriva el ID de chat del par no ordenado {a, b}:
// ChatKey(a, b) == ChatKey(b, a) para cualquier a, b.
func ChatKey(a, b string) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	// Cada componente va prefijado con su longitud: la codificacion es
	// inyectiva aunque los ids contengan el separador.
	name := strconv.Itoa(len(lo)) + ":" + lo + strconv.Itoa(len(hi)) + ":" + hi
	return uuid.NewSHA1(chatNamespace, []byte(name)).String()
}

// samePair indica si {a, b} y {c, d} son el mismo par no ordenado.
func samePair(a, b, c, d string) bool {
	return (a == c && b == d) || (a == d && b == c)
}
