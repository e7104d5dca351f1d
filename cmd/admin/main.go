package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	"bu-reg/backend/pkg/database"
	pkgerrors "bu-reg/backend/pkg/errors"
	applogger "bu-reg/backend/pkg/logger"
)

var (
	readPasswordFunc = term.ReadPassword

	errHelp = errors.New("help provided")
)

const minAdminPasswordLen = 8

type commandLine struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	cfgPath := os.Getenv("BUREG_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cli := &commandLine{cfg: cfg, logger: logger}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		}
		os.Exit(1)
	}
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createadmin -reg-no REG_NO -name NAME -email EMAIL - 创建管理员账号，密码随后输入")
	fmt.Println("  migrate-down -steps N                                - 回滚 N 个数据库迁移版本")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createadmin", flag.ExitOnError)
	regNo := createCmd.String("reg-no", "", "管理员工号")
	name := createCmd.String("name", "", "姓名")
	email := createCmd.String("email", "", "邮箱")

	downCmd := flag.NewFlagSet("migrate-down", flag.ExitOnError)
	steps := downCmd.Int("steps", 1, "回滚版本数")

	switch args[1] {
	case "createadmin":
		if err := createCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *regNo == "" || *name == "" || *email == "" {
			createCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) < minAdminPasswordLen {
			return fmt.Errorf("密码长度至少 %d 位", minAdminPasswordLen)
		}
		return cli.createAdmin(strings.TrimSpace(*regNo), strings.TrimSpace(*name), strings.TrimSpace(*email), string(pwd))
	case "migrate-down":
		if err := downCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *steps <= 0 {
			downCmd.Usage()
			return errHelp
		}
		return cli.migrateDown(*steps)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) createAdmin(regNo, name, email, password string) error {
	db, err := database.NewDB(&cli.cfg.Database, cli.cfg.Log.Level, cli.logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &model.User{
		Name:         name,
		RegNo:        regNo,
		Email:        email,
		Role:         model.RoleAdmin,
		PasswordHash: string(hash),
	}
	repo := repository.NewRepository(db)
	if err := repo.User.Create(context.Background(), user); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return fmt.Errorf("工号或邮箱已存在: %s / %s", regNo, email)
		}
		return err
	}

	cli.logger.Info("管理员账号已创建", zap.String("user_id", user.UserID), zap.String("reg_no", regNo))
	return nil
}

func (cli *commandLine) migrateDown(steps int) error {
	db, err := database.NewDB(&cli.cfg.Database, cli.cfg.Log.Level, cli.logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RollbackMigration(sqlDB, steps, cli.logger)
}
