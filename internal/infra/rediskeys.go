package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "reqflow"
)

const (
	// RedisKeyRequests: hash code -> JSON заявки; снимок хранилища ожидающих заявок.
	RedisKeyRequests = RedisNamespace + ":requests"
)
