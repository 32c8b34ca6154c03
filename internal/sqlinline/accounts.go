package sqlinline

// accountColumns is the projection scanned by repo.scanAccount.
const accountColumns = `id::text, email, name, password_hash, credits, tier, tier_expires_at, email_verified,
    coalesce(verify_token, ''), verify_expires_at, coalesce(reset_token, ''), reset_expires_at, created_at, updated_at`

const QInsertAccount = `--sql 2a01e3bb-3eba-4754-a295-374cc1f5b30b
insert into accounts (email, name, password_hash, credits, verify_token, verify_expires_at)
values (lower($1::text), $2::text, $3::text, $4::int, nullif($5::text, ''), $6::timestamptz)
returning id::text, tier, created_at, updated_at;
`

const QSelectAccountByID = `--sql 5aa0d94d-e3ee-4c5d-81e6-63f434b3f9c0
select ` + accountColumns + `
from accounts
where id = $1::uuid
limit 1;
`

const QSelectAccountByEmail = `--sql 741d245d-84c9-454c-a869-585a98f6e069
select ` + accountColumns + `
from accounts
where lower(email) = lower($1::text)
limit 1;
`

const QListAccounts = `--sql 8e91bb71-9906-47be-a6b3-a2faf517f85a
select ` + accountColumns + `
from accounts
order by created_at desc
limit $1::int;
`

// QDebitAccountCredit is the only statement that spends account credits. The
// credits > 0 guard makes concurrent debits on the last credit race safely.
const QDebitAccountCredit = `--sql 1827f191-e363-445c-a1f5-9b5beb3a0370
update accounts
set credits = credits - 1, updated_at = now()
where id = $1::uuid and credits > 0
returning credits;
`

const QSetAccountCredits = `--sql 85b723d3-0864-4b34-9115-3a84b9876009
update accounts
set credits = $2::int, updated_at = now()
where id = $1::uuid;
`

const QSetAccountTier = `--sql 37f47472-d7ef-4049-9ce5-3e8c3ba40319
update accounts
set tier = $2::text, tier_expires_at = $3::timestamptz, updated_at = now()
where id = $1::uuid;
`

const QVerifyAccountEmail = `--sql c3559354-90cc-41a2-a6b1-eebc4d6291af
update accounts
set email_verified = true, verify_token = null, verify_expires_at = null, updated_at = now()
where verify_token = $1::text and verify_expires_at > $2::timestamptz
returning ` + accountColumns + `;
`

const QSetAccountResetToken = `--sql bbb68a82-be6c-406b-921d-fa75c42ae95e
update accounts
set reset_token = $2::text, reset_expires_at = $3::timestamptz, updated_at = now()
where id = $1::uuid;
`

const QResetAccountPassword = `--sql c105554c-fdbe-42a3-b137-a3797134897e
update accounts
set password_hash = $2::text, reset_token = null, reset_expires_at = null, updated_at = now()
where reset_token = $1::text and reset_expires_at > $3::timestamptz;
`

const QDowngradeExpiredTiers = `--sql 9eb93298-dae8-488a-bf47-db81f5894177
update accounts
set tier = 'standard', tier_expires_at = null, updated_at = now()
where tier = 'elevated' and tier_expires_at is not null and tier_expires_at <= $1::timestamptz;
`

const QDeleteAccount = `--sql fa99f720-f7a6-48c1-bc3d-832c67994a07
delete from accounts
where id = $1::uuid;
`
