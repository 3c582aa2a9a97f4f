package publish

// Categories attached to publish failures after retry exhaustion.
const (
	CategoryUnauthenticated = "unauthenticated"
	CategoryForbidden       = "forbidden"
	CategoryUnknown         = "unknown"
)

// Categorize maps a failed host call to an error category and a short list
// of remediation hints for the operator.
func Categorize(err error) (category string, suggestions []string) {
	switch StatusOf(err) {
	case 401:
		return CategoryUnauthenticated, []string{
			"サービスアカウント資格情報の読み込みを確認 (環境変数再設定後に再起動)",
			"秘密鍵の改行が \\n でエスケープされているか確認",
			"サービスアカウント鍵が削除されていないか確認",
		}
	case 403:
		return CategoryForbidden, []string{
			"Sheets / Drive API の有効化を確認",
			"出力先フォルダの共有設定 (編集権限以上) を確認",
			"共有ドライブの場合はサービスアカウントをメンバーに追加",
			"一旦フォルダ指定を外して動作確認",
			"組織ポリシー (外部共有禁止等) を確認",
		}
	default:
		return CategoryUnknown, []string{
			"再実行 (一時的エラーの可能性)",
			"API クォータの使用状況を確認",
			"サーバーログで詳細を確認",
		}
	}
}
