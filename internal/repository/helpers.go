package repository

import "database/sql"

// nullStringValue はsql.NullStringから値を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

// nullString は空文字列をNULLとして保存するためのsql.NullStringを生成する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
