package blob

import (
	"context"
	"time"
)

// Store простое key-value хранилище бинарных значений с подсказкой
// времени жизни. Используется шлюзом сессий; гарантии долговечности
// и своевременность удаления по TTL остаются на стороне реализации.
type Store interface {
	// Get возвращает значение по ключу. Второй результат — найден ли ключ.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set сохраняет значение, привязывая к нему подсказку истечения.
	// ttl == 0 означает «без истечения».
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключ. Отсутствие ключа не является ошибкой.
	Delete(ctx context.Context, key string) error
}
