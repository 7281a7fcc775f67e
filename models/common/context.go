package common

import (
	"fmt"

	"github.com/esperoj/esperoj/network"
	"github.com/esperoj/esperoj/util/logger"
	"github.com/op/go-logging"
)

// Context bundles the config settings and the clients a worker needs
// to talk to S3, Redis, NSQ, and the records service. Workers receive
// a Context explicitly instead of reaching for process-wide globals,
// so tests can hand them a Context full of fakes.
type Context struct {
	Config       *Config
	Logger       *logging.Logger
	NSQClient    network.NSQClientInterface
	RecordClient network.RecordService
	RedisClient  *network.RedisClient
	ObjectStores map[string]network.ObjectStore
}

func NewContext() *Context {
	config := NewConfig()
	_logger := getLogger(config)
	return &Context{
		Config:       config,
		Logger:       _logger,
		NSQClient:    getNsqClient(config),
		RecordClient: getRecordClient(config, _logger),
		RedisClient:  getRedisClient(config),
		ObjectStores: getObjectStores(config, _logger),
	}
}

func getLogger(config *Config) *logging.Logger {
	log, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return log
}

func getNsqClient(config *Config) *network.NSQClient {
	return network.NewNSQClient(config.NsqURL)
}

func getRedisClient(config *Config) *network.RedisClient {
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getRecordClient(config *Config, logger *logging.Logger) network.RecordService {
	client, err := network.NewRecordClient(
		config.RecordsURL,
		config.RecordsAPIVersion,
		config.RecordsAPIUser,
		config.RecordsAPIKey,
		logger)
	if err != nil {
		msg := fmt.Sprintf("Could not initialize records client: %v", err)
		panic(msg)
	}
	return client
}

func getObjectStores(config *Config, logger *logging.Logger) map[string]network.ObjectStore {
	stores := make(map[string]network.ObjectStore, len(config.ArchivalBuckets))
	useSSL := true
	if config.ConfigName == "dev" || config.ConfigName == "test" {
		useSSL = false // talking to localhost in dev and test
	}
	for _, bucket := range config.ArchivalBuckets {
		creds := config.S3Credentials[bucket.Provider]
		store, err := network.NewS3ObjectStore(
			bucket.Provider,
			bucket.Bucket,
			creds.Host,
			creds.KeyID,
			creds.SecretKey,
			useSSL,
			logger)
		if err != nil {
			panic(err)
		}
		if config.LogLevel == logging.DEBUG {
			store.TraceOn(NewTracer(logger))
		}
		stores[bucket.Provider] = store
	}
	return stores
}

// ObjectStore returns the store for the named provider. Callers get an
// error, not a nil-pointer panic, when the config omits a provider.
func (context *Context) ObjectStore(provider string) (network.ObjectStore, error) {
	store := context.ObjectStores[provider]
	if store == nil {
		return nil, fmt.Errorf("no object store for provider %s", provider)
	}
	return store, nil
}

// StoresForFile returns the stores that hold, or should hold, copies
// of a file archived under the named provider: that provider's store
// first, then the stores for the configured backup buckets. An empty
// result means the provider isn't part of this configuration at all,
// and callers must treat that as an error, not as a file with zero
// copies.
func (context *Context) StoresForFile(provider string) []network.ObjectStore {
	stores := make([]network.ObjectStore, 0, len(context.ObjectStores))
	if primary, err := context.ObjectStore(provider); err == nil {
		stores = append(stores, primary)
	}
	for _, bucket := range context.Config.BackupBuckets() {
		if bucket.Provider == provider {
			continue
		}
		if store, err := context.ObjectStore(bucket.Provider); err == nil {
			stores = append(stores, store)
		}
	}
	return stores
}
