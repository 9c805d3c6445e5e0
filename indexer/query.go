package indexer

import "gorm.io/gorm"

func page(db *gorm.DB, p int, pageSize int) *gorm.DB {
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 100
	}
	if p < 0 {
		p = 0
	}
	return db.Offset(p * pageSize).Limit(pageSize)
}

func (c *ChainIndexer) getProposals(status string, p int, pageSize int) ([]Proposal, int64, error) {
	q := c.db.Model(&Proposal{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var proposals []Proposal
	err := page(q.Order("new_height desc"), p, pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(id string) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("id = ?", id).First(&proposal).Error
	return proposal, err
}

func (c *ChainIndexer) getVotes(proposal string, voter string, p int, pageSize int) ([]Vote, int64, error) {
	q := c.db.Model(&Vote{})
	if proposal != "" {
		q = q.Where("proposal = ?", proposal)
	}
	if voter != "" {
		q = q.Where("voter = ?", voter)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var votes []Vote
	err := page(q.Order("id asc"), p, pageSize).Find(&votes).Error
	return votes, total, err
}

func (c *ChainIndexer) getDonations(status string, recipient string, p int, pageSize int) ([]Donation, int64, error) {
	q := c.db.Model(&Donation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if recipient != "" {
		q = q.Where("recipient = ?", recipient)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var donations []Donation
	err := page(q.Order("id desc"), p, pageSize).Find(&donations).Error
	return donations, total, err
}

func (c *ChainIndexer) getDonationById(id uint64) (Donation, error) {
	var d Donation
	err := c.db.Where("id = ?", id).First(&d).Error
	return d, err
}

func (c *ChainIndexer) getDonationByReference(reference string) (Donation, error) {
	var d Donation
	err := c.db.Where("reference = ?", reference).Order("id desc").First(&d).Error
	return d, err
}

func (c *ChainIndexer) getContributions(kind string, donation *uint64, account string, p int, pageSize int) ([]Contribution, int64, error) {
	q := c.db.Model(&Contribution{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if donation != nil {
		q = q.Where("donation = ?", *donation)
	}
	if account != "" {
		q = q.Where("account = ?", account)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var cs []Contribution
	err := page(q.Order("id asc"), p, pageSize).Find(&cs).Error
	return cs, total, err
}
