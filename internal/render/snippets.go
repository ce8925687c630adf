package render

// String templates for the rendered artifacts. Indexed Sprintf verbs
// keep repeated substitutions (source names, table names) in one place;
// literal percent signs in the generated Python are doubled.

const dagHeader = `from datetime import datetime, timedelta
from airflow import DAG
from airflow.operators.python_operator import PythonOperator
import pandas as pd
import logging

default_args = {
    'owner': 'datalens',
    'depends_on_past': False,
    'start_date': datetime(2024, 1, 1),
    'email_on_failure': False,
    'email_on_retry': False,
    'retries': 1,
    'retry_delay': timedelta(minutes=5),
}

dag = DAG(
    '%s',
    default_args=default_args,
    description='Auto-generated ETL pipeline',
    schedule_interval=%s,
    catchup=False,
    tags=['auto-generated', 'etl'],
)
`

// args: ident, name, path, delimiter, encoding, id
const extractDelimited = `

def extract_%[1]s(**context):
    """Extract rows from delimited file: %[2]s"""
    try:
        df = pd.read_csv(
            '%[3]s',
            delimiter='%[4]s',
            encoding='%[5]s'
        )

        df.to_parquet('/tmp/%[6]s_data.parquet', index=False)

        logging.info(f"Extracted {len(df)} rows from %[2]s")
        return '/tmp/%[6]s_data.parquet'

    except Exception as e:
        logging.error(f"Error extracting from %[2]s: {str(e)}")
        raise
`

// args: ident, name, table, id
const extractRelational = `

def extract_%[1]s(**context):
    """Extract rows from relational table: %[2]s"""
    try:
        from airflow.providers.postgres.hooks.postgres import PostgresHook

        pg_hook = PostgresHook(postgres_conn_id='postgres_default')

        df = pg_hook.get_pandas_df(sql="SELECT * FROM %[3]s")

        df.to_parquet('/tmp/%[4]s_data.parquet', index=False)

        logging.info(f"Extracted {len(df)} rows from %[2]s")
        return '/tmp/%[4]s_data.parquet'

    except Exception as e:
        logging.error(f"Error extracting from %[2]s: {str(e)}")
        raise
`

// args: ident, name, path, id
const extractDocument = `

def extract_%[1]s(**context):
    """Extract records from document: %[2]s"""
    try:
        import json

        with open('%[3]s', 'r', encoding='utf-8') as f:
            data = json.load(f)

        if isinstance(data, list):
            df = pd.json_normalize(data)
        else:
            df = pd.json_normalize([data])

        df.to_parquet('/tmp/%[4]s_data.parquet', index=False)

        logging.info(f"Extracted {len(df)} rows from %[2]s")
        return '/tmp/%[4]s_data.parquet'

    except Exception as e:
        logging.error(f"Error extracting from %[2]s: {str(e)}")
        raise
`

// args: read_parquet lines, join code
const transformFunc = `

def transform_data(**context):
    """Join extracted frames into one result set"""
    try:
        from datetime import datetime

        dfs = {}
%[1]s

        logging.info("Loaded data from all sources")

%[2]s
        result_df['etl_timestamp'] = datetime.now()
        result_df = result_df.drop_duplicates()
        result_df = result_df.fillna('')

        logging.info(f"Transformed data: {len(result_df)} rows, {len(result_df.columns)} columns")

        result_df.to_parquet('/tmp/transformed_data.parquet', index=False)
        return '/tmp/transformed_data.parquet'

    except Exception as e:
        logging.error(f"Error in data transformation: {str(e)}")
        raise
`

// args: other source id, join key
const mergeCode = `
        if '%[1]s' in dfs and '%[2]s' in result_df.columns and '%[2]s' in dfs['%[1]s'].columns:
            result_df = result_df.merge(
                dfs['%[1]s'],
                on='%[2]s',
                how='left',
                suffixes=('', '_%[1]s')
            )
            logging.info("Joined with %[1]s on %[2]s")
`

const concatCode = `        if len(dfs) == 1:
            result_df = list(dfs.values())[0]
        else:
            result_df = pd.concat(list(dfs.values()), ignore_index=True, sort=False)
`

// args: main table
const loadColumnar = `

def load_data(**context):
    """Load the result set into the columnar store"""
    try:
        import os
        from clickhouse_driver import Client

        df = pd.read_parquet('/tmp/transformed_data.parquet')

        if len(df) == 0:
            logging.warning("No data to load")
            return

        client = Client(
            host=os.getenv('CLICKHOUSE_HOST', 'localhost'),
            port=int(os.getenv('CLICKHOUSE_PORT', '9000')),
            user=os.getenv('CLICKHOUSE_USER', 'default'),
            password=os.getenv('CLICKHOUSE_PASSWORD', ''),
            database=os.getenv('CLICKHOUSE_DATABASE', 'default')
        )

        client.execute(
            'INSERT INTO %[1]s VALUES',
            [tuple(row) for row in df.values]
        )

        logging.info(f"Loaded {len(df)} rows to %[1]s")

    except Exception as e:
        logging.error(f"Error loading data: {str(e)}")
        raise
`

// args: main table
const loadRowStore = `

def load_data(**context):
    """Load the result set into the row store"""
    try:
        from airflow.providers.postgres.hooks.postgres import PostgresHook

        df = pd.read_parquet('/tmp/transformed_data.parquet')

        if len(df) == 0:
            logging.warning("No data to load")
            return

        pg_hook = PostgresHook(postgres_conn_id='postgres_default')

        pg_hook.run("""
            CREATE TABLE IF NOT EXISTS %[1]s (
                id SERIAL PRIMARY KEY,
                data JSONB,
                etl_timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
            );
        """)

        insert_query = """
            INSERT INTO %[1]s (data, etl_timestamp)
            VALUES (%%(data)s, %%(timestamp)s)
        """

        for _, row in df.iterrows():
            row_data = row.to_dict()
            timestamp = row_data.pop('etl_timestamp', 'now()')
            pg_hook.run(insert_query, parameters={'data': str(row_data), 'timestamp': timestamp})

        logging.info(f"Loaded {len(df)} rows to %[1]s")

    except Exception as e:
        logging.error(f"Error loading data: {str(e)}")
        raise
`

// args: ident
const extractTask = `
extract_%[1]s = PythonOperator(
    task_id='extract_%[1]s',
    python_callable=extract_%[1]s,
    dag=dag,
)
extract_tasks.append(extract_%[1]s)
`

const finalTasks = `
transform_task = PythonOperator(
    task_id='transform_data',
    python_callable=transform_data,
    dag=dag,
)

load_task = PythonOperator(
    task_id='load_data',
    python_callable=load_data,
    dag=dag,
)

extract_tasks >> transform_task >> load_task
`

// args: main table
const columnarOptimization = `-- Columnar store maintenance
OPTIMIZE TABLE %[1]s FINAL;

-- Table size check
SELECT
    table,
    formatReadableSize(sum(bytes)) AS size,
    sum(rows) AS rows
FROM system.parts
WHERE table = '%[1]s'
GROUP BY table;
`

// args: main table
const rowStoreOptimization = `-- Row store maintenance
ANALYZE %[1]s;

-- Add indexes here once query patterns are known, e.g.
-- CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_%[1]s_etl_timestamp
--     ON %[1]s (etl_timestamp);

-- Write statistics for the table
SELECT
    schemaname,
    relname,
    n_tup_ins AS inserts,
    n_tup_upd AS updates,
    n_tup_del AS deletes
FROM pg_stat_user_tables
WHERE relname = '%[1]s';
`
