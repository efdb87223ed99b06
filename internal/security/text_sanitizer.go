package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はポスト本文の浄化機能のインターフェースを定義する。
// タイムライン取り込み時、ポストの保存前に使用される。
// RSSミラー経由のタイムラインはHTML断片を含むことがあるため、
// 保存するのはプレーンテキストに正規化した本文のみとする。
type TextSanitizerService interface {
	// SanitizeText は入力からHTMLタグをすべて除去し、
	// HTMLエンティティをデコードした上で空白を正規化したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに浄化処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、scriptやiframeを含む
// あらゆるHTML要素が除去され、テキストノードだけが残る。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力をプレーンテキストに正規化して返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}

	stripped := s.policy.Sanitize(raw)

	// bluemondayはテキストをHTMLエスケープして返すため、
	// プレーンテキストとして保存する前にエンティティを戻す。
	decoded := html.UnescapeString(stripped)

	// タグ除去で生じた連続空白と改行を単一スペースに畳む。
	return strings.Join(strings.Fields(decoded), " ")
}
