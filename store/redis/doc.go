// Package redis provides a Redis-backed chat history store.
//
// Every session is a list under "<prefix>session:<id>:turns" holding one JSON
// document per turn. With a TTL set, each append pushes the session's expiry
// forward, so idle sessions disappear on their own.
//
//	hs := redis.NewRedisHistoryStore(redis.RedisOptions{
//		Addr: "localhost:6379",
//		TTL:  24 * time.Hour,
//	})
//	defer hs.Close()
package redis
