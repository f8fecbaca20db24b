/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package redis_db

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a universal client so the rest of the codebase does not
// care whether it talks to a single instance or a cluster.
type Redis struct {
	addresses []string
	client    redis.UniversalClient
}

// NewRedisClient connects to Redis. One address gives a standalone
// client, several give a cluster client. The connection is pinged
// before being handed out.
func NewRedisClient(addresses []string, skipTLSVerify bool) (*Redis, error) {
	if len(addresses) == 0 {
		return nil, errors.New("redis addresses list cannot be empty")
	}

	var client redis.UniversalClient
	var err error
	if len(addresses) == 1 {
		client, err = standaloneClient(addresses[0], skipTLSVerify)
	} else {
		client, err = clusterClient(addresses, skipTLSVerify)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{addresses: addresses, client: client}, nil
}

func standaloneClient(address string, skipTLSVerify bool) (redis.UniversalClient, error) {
	opts, err := ParseRedisURL(address, skipTLSVerify)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// clusterClient merges per-node options into one universal client.
// Nodes share credentials, so the first password seen wins, and TLS
// covers the whole cluster as soon as any node needs it.
func clusterClient(addresses []string, skipTLSVerify bool) (redis.UniversalClient, error) {
	var nodeAddrs []string
	var password string
	useTLS := false

	for _, addr := range addresses {
		opts, err := ParseRedisURL(addr, skipTLSVerify)
		if err != nil {
			return nil, err
		}
		nodeAddrs = append(nodeAddrs, opts.Addr)
		if password == "" {
			password = opts.Password
		}
		useTLS = useTLS || opts.TLSConfig != nil
	}

	var tlsConfig *tls.Config
	if useTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: skipTLSVerify,
		}
	}

	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:     nodeAddrs,
		Password:  password,
		TLSConfig: tlsConfig,
	}), nil
}

// ParseRedisURL turns a Redis address into client options. It accepts
// docker-style host:port pairs, full redis:// URLs, and managed-cache
// URLs whose passwords carry special characters.
func ParseRedisURL(rawURL string, skipTLSVerify bool) (*redis.Options, error) {
	if isBareHostPort(rawURL) {
		return &redis.Options{Addr: rawURL}, nil
	}

	opts, err := redis.ParseURL(normalizeAuthURL(rawURL))
	if err != nil {
		opts = fallbackOptions(rawURL)
	}

	if opts.TLSConfig != nil && skipTLSVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opts, nil
}

// isBareHostPort spots docker-style addresses like redis:6379 that
// must not go through URL parsing.
func isBareHostPort(raw string) bool {
	return strings.Count(raw, ":") == 1 && !strings.Contains(raw, "@") && !strings.Contains(raw, "//")
}

// normalizeAuthURL rewrites redis://password@host into
// redis://:password@host so ParseURL reads the credential as a
// password rather than a username.
func normalizeAuthURL(rawURL string) string {
	if !strings.HasPrefix(rawURL, "redis://") {
		return rawURL
	}
	auth, host, found := strings.Cut(strings.TrimPrefix(rawURL, "redis://"), "@")
	if !found || strings.Contains(auth, ":") || strings.Contains(host, "@") {
		return rawURL
	}
	return "redis://:" + auth + "@" + host
}

// fallbackOptions hand-parses addresses ParseURL rejects, mainly
// managed caches with unescaped password characters.
func fallbackOptions(rawURL string) *redis.Options {
	host := rawURL
	var password string

	if auth, rest, found := strings.Cut(rawURL, "@"); found && !strings.Contains(rest, "@") {
		password = strings.TrimPrefix(auth, "redis://")
		host = rest
	}

	opts := &redis.Options{Addr: host, Password: password}

	// Azure-managed caches insist on TLS even when the address says
	// nothing about it.
	if strings.Contains(host, "redis.cache.windows.net") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client returns the underlying universal client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// MakeRedisClient satisfies asynq's RedisConnOpt shape so the same
// connection settings feed the queue as everything else.
func (r *Redis) MakeRedisClient() interface{} {
	return r.client
}
