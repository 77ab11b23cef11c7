package app

import (
	"context"
	"fmt"
	"os"
)

// Cat 查询并打印单只 MoonCat 的元数据与图片链接。
func (a *App) Cat(ctx context.Context, tokenID uint64) error {
	client := a.newMoonCatClient()

	traits, err := client.TraitsByRescueIndex(ctx, tokenID)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("MoonCat #%d: %s", traits.RescueIndex, traits.CatID)
	if traits.Name != "" {
		title = fmt.Sprintf("%s: MoonCat #%d", traits.Name, traits.RescueIndex)
	}

	fmt.Fprintln(os.Stdout, title)
	fmt.Fprintln(os.Stdout, client.ChainStationURL(traits.RescueIndex))

	imageURL, err := client.ImageURL(ctx, tokenID)
	if err != nil {
		a.Logger.Warn().Err(err).Uint64("token_id", tokenID).Msg("image lookup failed")
		return nil
	}
	fmt.Fprintln(os.Stdout, imageURL)
	return nil
}

// DNA 打印 DNA 图片的 IPFS 链接。
func (a *App) DNA(tokenID uint64) error {
	fmt.Fprintln(os.Stdout, a.newMoonCatClient().DNAImageURL(tokenID))
	return nil
}

// Wrapper 将旧包装合约的 token id 解析为 rescue index。
func (a *App) Wrapper(ctx context.Context, wrapperTokenID uint64) error {
	catID, err := a.newWrapperFetcher().ResolveCatID(ctx, wrapperTokenID)
	if err != nil {
		return fmt.Errorf("resolve cat id: %w", err)
	}

	traits, err := a.newMoonCatClient().TraitsByCatID(ctx, catID)
	if err != nil {
		return fmt.Errorf("lookup rescue index: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Rescue Index: %d\n", traits.RescueIndex)
	return nil
}
