package dbs

import (
	"time"

	"github.com/gomodule/redigo/redis"
)

// NewRedisPool builds the shared connection pool for the ephemeral cache
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     10,
		MaxActive:   50,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// RedisGet fetches a string key; a missing key returns "" and no error
func RedisGet(pool *redis.Pool, key string) (string, error) {
	conn := pool.Get()
	defer conn.Close()
	val, err := redis.String(conn.Do("GET", key))
	if err == redis.ErrNil {
		return "", nil
	}
	return val, err
}

// RedisSetex stores a value with a ttl in seconds
func RedisSetex(pool *redis.Pool, key string, ttl int, val string) error {
	conn := pool.Get()
	defer conn.Close()
	_, err := conn.Do("SETEX", key, ttl, val)
	return err
}

// RedisDel removes a key
func RedisDel(pool *redis.Pool, key string) error {
	conn := pool.Get()
	defer conn.Close()
	_, err := conn.Do("DEL", key)
	return err
}
