package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はタスクワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandScheduler はスケジューラモードで起動することを示す。
	CommandScheduler Command = "scheduler"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandCreateUser は管理用のユーザー作成コマンドを示す。
	// 初回の管理者ユーザーのブートストラップに使用する。
	CommandCreateUser Command = "createuser"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "scheduler":
		return CommandScheduler
	case "migrate":
		return CommandMigrate
	case "createuser":
		return CommandCreateUser
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
