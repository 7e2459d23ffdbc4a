package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// Fingerprint идентификатор задачи импорта: md5 от имени файла, размера, тенанта и пользователя.
// Один и тот же файл от того же пользователя того же тенанта дает тот же jobId.
func Fingerprint(filename string, size int64, tenantID, userID string) string {
	h := md5.New()
	h.Write([]byte(filename))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte(tenantID))
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}
