package network

import (
	"fmt"

	"github.com/esperoj/esperoj/models/service"
	"github.com/go-redis/redis/v7"
)

// RedisClient stores interim processing state: the WorkResult of each
// file's current archive or verify attempt. If a worker dies partway
// through, the next attempt can see how far the last one got and retry
// the operation as a whole.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

func workResultField(operation string) string {
	return fmt.Sprintf("result:%s", operation)
}

// WorkResultGet returns the saved WorkResult for the given file
// identifier and operation, or an error if none is saved.
func (c *RedisClient) WorkResultGet(identifier, operation string) (*service.WorkResult, error) {
	data, err := c.client.HGet(identifier, workResultField(operation)).Result()
	if err != nil {
		return nil, fmt.Errorf("WorkResultGet (%s, %s): %s",
			identifier, operation, err.Error())
	}
	return service.WorkResultFromJSON(data)
}

func (c *RedisClient) WorkResultSave(identifier string, result *service.WorkResult) error {
	jsonData, err := result.ToJSON()
	if err != nil {
		return err
	}
	_, err = c.client.HSet(identifier, workResultField(result.Operation), jsonData).Result()
	return err
}

func (c *RedisClient) WorkResultDelete(identifier, operation string) error {
	_, err := c.client.HDel(identifier, workResultField(operation)).Result()
	return err
}
