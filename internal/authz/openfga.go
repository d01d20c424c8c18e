package authz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// callerRelation 授权模型中 operation 对象上的关系名
const callerRelation = "caller"

// PermissionModel OpenFGA 授权模型定义
const PermissionModel = `model
  schema 1.1

type user

type component

type operation
  relations
    define caller: [user, component]`

// OpenFGAClient OpenFGA 客户端
type OpenFGAClient struct {
	client  *client.OpenFgaClient
	storeID string
	modelID string
}

// NewOpenFGAClient 创建 OpenFGA 客户端
func NewOpenFGAClient(apiURL string, storeID string, modelID string) (*OpenFGAClient, error) {
	configuration := client.ClientConfiguration{
		ApiUrl:  apiURL,
		StoreId: storeID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodNone,
		},
	}

	fgaClient, err := client.NewSdkClient(&configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	return &OpenFGAClient{
		client:  fgaClient,
		storeID: storeID,
		modelID: modelID,
	}, nil
}

// NewOpenFGAClientWithRetry 带重试的 OpenFGA 客户端创建
func NewOpenFGAClientWithRetry(apiURL string, storeID string, modelID string, maxRetries int, retryInterval time.Duration) (*OpenFGAClient, error) {
	var fgaClient *OpenFGAClient
	var err error

	for i := 0; i < maxRetries; i++ {
		fgaClient, err = NewOpenFGAClient(apiURL, storeID, modelID)
		if err == nil {
			if fgaClient.CheckHealth(context.Background()) {
				return fgaClient, nil
			}
			err = fmt.Errorf("openfga at %s is not reachable", apiURL)
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to create OpenFGA client after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查 OpenFGA 连接健康状态
func (c *OpenFGAClient) CheckHealth(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.Read(ctx).Execute()
	return err == nil
}

// subject 将调用方身份转换为 OpenFGA 用户,组件身份本身就是 "component:<name>"
func subject(caller string) string {
	if strings.HasPrefix(caller, "component:") || strings.HasPrefix(caller, "user:") {
		return caller
	}
	return "user:" + caller
}

// identity 将 OpenFGA 用户还原为调用方身份
func identity(user string) string {
	return strings.TrimPrefix(user, "user:")
}

func object(operation string) string {
	return "operation:" + operation
}

// openFGAAuthorizer 基于 OpenFGA 的授权后端
type openFGAAuthorizer struct {
	fga *OpenFGAClient
}

// NewOpenFGAAuthorizer 创建 OpenFGA 授权后端
func NewOpenFGAAuthorizer(fga *OpenFGAClient) Authorizer {
	return &openFGAAuthorizer{fga: fga}
}

// Allowed 检查授权
func (a *openFGAAuthorizer) Allowed(ctx context.Context, caller, operation string) (bool, error) {
	body := client.ClientCheckRequest{
		User:     subject(caller),
		Relation: callerRelation,
		Object:   object(operation),
	}

	response, err := a.fga.client.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	return response.GetAllowed(), nil
}

// Grant 写入授权关系
func (a *openFGAAuthorizer) Grant(ctx context.Context, caller, operation, grantedBy string) error {
	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{
			{
				User:     subject(caller),
				Relation: callerRelation,
				Object:   object(operation),
			},
		},
	}

	if _, err := a.fga.client.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("failed to set relation: %w", err)
	}
	return nil
}

// Revoke 删除授权关系
func (a *openFGAAuthorizer) Revoke(ctx context.Context, caller, operation string) error {
	body := client.ClientWriteRequest{
		Deletes: []client.ClientTupleKeyWithoutCondition{
			{
				User:     subject(caller),
				Relation: callerRelation,
				Object:   object(operation),
			},
		},
	}

	if _, err := a.fga.client.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	return nil
}

// List 读取全部授权元组
func (a *openFGAAuthorizer) List(ctx context.Context) ([]Grant, error) {
	response, err := a.fga.client.Read(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to read relations: %w", err)
	}

	var grants []Grant
	for _, tuple := range response.GetTuples() {
		key := tuple.GetKey()
		if key.GetRelation() != callerRelation {
			continue
		}
		grants = append(grants, Grant{
			Caller:    identity(key.GetUser()),
			Operation: strings.TrimPrefix(key.GetObject(), "operation:"),
			CreatedAt: tuple.GetTimestamp(),
		})
	}
	return grants, nil
}
