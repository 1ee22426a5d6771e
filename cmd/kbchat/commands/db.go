package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// DBInitAction はCSVファイルから会社データベースを作成する
func DBInitAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	repo := appCtx.Container.DataRepo
	if repo == nil {
		return fmt.Errorf("構造化データストアを開けません: %s", appCtx.Config.SQLitePath)
	}

	employees, err := repo.ImportEmployeesCSV(ctx, cmd.String("employees"))
	if err != nil {
		return fmt.Errorf("従業員データのインポートに失敗: %w", err)
	}
	fmt.Printf("従業員 %d 件をインポートしました\n", employees)

	customers, err := repo.ImportCustomersCSV(ctx, cmd.String("customers"))
	if err != nil {
		return fmt.Errorf("顧客データのインポートに失敗: %w", err)
	}
	fmt.Printf("顧客 %d 件をインポートしました\n", customers)

	fmt.Printf("データベースを作成しました: %s\n", appCtx.Config.SQLitePath)
	return nil
}
