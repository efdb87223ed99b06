// Package vector は埋め込みベクトルの数値計算を提供する。
// 類似度スコアリングはアラート判定とダイジェスト選定の両方から利用される。
package vector

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Cosine は2つのベクトルのコサイン類似度を返す。
// 戻り値は[-1, 1]の範囲に収まる。
// 次元不一致、またはどちらかのベクトルの大きさが0の場合は、
// エラーではなくデータ品質の問題として中立値0.0を返す。
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// 浮動小数点誤差で範囲を僅かに超える場合があるためクランプする
	if sim > 1.0 {
		return 1.0
	}
	if sim < -1.0 {
		return -1.0
	}
	return sim
}

// Parse は文字列エンコードされたベクトルをパースする。
// 旧データとの互換レイヤーであり、新規コードでは常に数値配列で持ち回ること。
//
// パース手順:
//  1. JSON配列としてパース（例: "[0.1, 0.2]"）
//  2. 失敗した場合は括弧を除去してカンマ区切りの手動パース
//
// 両方失敗した場合はnilを返す。エラーにはしない。
func Parse(s string) []float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var vec []float64
	if err := json.Unmarshal([]byte(s), &vec); err == nil {
		return vec
	}

	// 括弧/カンマ除去の手動パースにフォールバック
	trimmed := strings.Trim(s, "[]()")
	parts := strings.Split(trimmed, ",")
	vec = make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil
		}
		vec = append(vec, f)
	}

	if len(vec) == 0 {
		return nil
	}
	return vec
}

// IsZero はベクトルが未設定またはすべての成分が0かどうかを返す。
// 埋め込みプロバイダが利用不能な場合に返すゼロベクトルの検出に使用する。
func IsZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
