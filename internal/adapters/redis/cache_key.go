package redis_adapter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"property-import-service/internal/constants"
)

// BuildCacheKey "properties:" + base64url(JSON параметров). encoding/json сортирует ключи map,
// поэтому одинаковые параметры дают одинаковый ключ. nil-значения отбрасываются.
func BuildCacheKey(params map[string]interface{}) (string, error) {
	clean := make(map[string]interface{}, len(params))
	for k, v := range params {
		if v != nil {
			clean[k] = v
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("marshal cache params: %w", err)
	}
	return constants.PropertiesKeyPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCacheKey обратное преобразование; ошибка для чужих или поврежденных ключей
func DecodeCacheKey(key string) (map[string]interface{}, error) {
	encoded, ok := strings.CutPrefix(key, constants.PropertiesKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("key %q has no %s prefix", key, constants.PropertiesKeyPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode cache key: %w", err)
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("unmarshal cache key: %w", err)
	}
	return params, nil
}
