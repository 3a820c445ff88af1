package config

import "fmt"

type RedisKeyStruct struct{}

// AuthToken returns the key marking an issued token as live
func (r *RedisKeyStruct) AuthToken(jti string) string {
	return fmt.Sprintf("auth:token:%s", jti)
}

var RedisKey = &RedisKeyStruct{}
