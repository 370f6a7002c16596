package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHTTP APIサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れOTPのクリーンアップを定期実行する常駐プロセスを起動する。
	CommandWorker Command = "worker"
	// CommandCleanup は期限切れOTPのクリーンアップを1回だけ実行して終了する。
	// cronなど外部スケジューラーからの起動用。
	CommandCleanup Command = "cleanup"
	// CommandMigrate は未適用のスキーママイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandCleanup):     CommandCleanup,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数からサブコマンドを解析する。
// 引数なし、または未知のサブコマンドはserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// NeedsDatabase はサブコマンドがDB接続を必要とするかを返す。
func (c Command) NeedsDatabase() bool {
	return c != CommandHealthcheck
}
